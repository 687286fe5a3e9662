package battle

import (
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

const ContractEventLogID = "coinflipEvents"

// contractEventLog is the unit's append-only event log. A single instance
// is spawned when the unit is initialized; after that the log only changes
// through state changes emitted by the battle contract.
type contractEventLog struct {
	byzcoin.BasicContract
	EventLog
}

func contractEventLogFromBytes(in []byte) (byzcoin.Contract, error) {
	c := &contractEventLog{}
	err := protobuf.Decode(in, &c.EventLog)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return c, nil
}

func (c *contractEventLog) Spawn(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("GetValues failed: %v", err)
		return
	}
	elog := &EventLog{NextSeq: 1}
	var buf []byte
	buf, err = protobuf.Encode(elog)
	if err != nil {
		log.Errorf("Protobuf encode failed: %v", err)
		return
	}
	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Create, inst.DeriveID(""), ContractEventLogID, buf, darcID),
	}
	return
}

func (c *contractEventLog) Invoke(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("event log cannot be invoked directly")
}

func (c *contractEventLog) Delete(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("event log cannot be deleted")
}

// appendEvents assigns sequence numbers to the given events, appends them
// to the log instance and returns the corresponding update state change.
func appendEvents(rst byzcoin.ReadOnlyStateTrie, id byzcoin.InstanceID, evs []Event) (byzcoin.StateChange, error) {
	v, _, cid, darcID, err := rst.GetValues(id.Slice())
	if err != nil {
		return byzcoin.StateChange{}, xerrors.Errorf("couldn't get event log: %v", err)
	}
	if cid != ContractEventLogID {
		return byzcoin.StateChange{}, xerrors.New("instance is not an event log")
	}
	elog := &EventLog{}
	err = protobuf.Decode(v, elog)
	if err != nil {
		return byzcoin.StateChange{}, xerrors.Errorf("couldn't decode event log: %v", err)
	}
	for i := range evs {
		evs[i].Seq = elog.NextSeq
		elog.NextSeq++
		elog.Events = append(elog.Events, evs[i])
	}
	buf, err := protobuf.Encode(elog)
	if err != nil {
		return byzcoin.StateChange{}, xerrors.Errorf("couldn't encode event log: %v", err)
	}
	return byzcoin.NewStateChange(byzcoin.Update, id, ContractEventLogID, buf, darcID), nil
}
