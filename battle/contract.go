package battle

import (
	"crypto/sha256"

	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

const ContractBattleID = "coinflipBattle"

type contractBattle struct {
	byzcoin.BasicContract
	RoomStorage
}

func contractBattleFromBytes(in []byte) (byzcoin.Contract, error) {
	c := &contractBattle{}
	err := protobuf.Decode(in, &c.RoomStorage)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return c, nil
}

// openSigned extracts the named argument and decodes its payload into out.
// The signature is checked separately with verifySigned once the claimed
// signer is known.
func openSigned(args byzcoin.Arguments, name string, out interface{}) (*SignedValue, error) {
	buf := args.Search(name)
	if buf == nil {
		return nil, xerrors.Errorf("missing argument: %s", name)
	}
	sv := &SignedValue{}
	err := protobuf.Decode(buf, sv)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode signed value: %v", err)
	}
	err = protobuf.Decode(sv.Data, out)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode payload: %v", err)
	}
	return sv, nil
}

// verifySigned checks the schnorr signature over the payload digest against
// the hex-encoded public key.
func verifySigned(sv *SignedValue, publicHex string) error {
	err := utils.VerifyBytes(publicHex, sv.Data, sv.Sig)
	if err != nil {
		log.Errorf("Cannot verify signature: %v", err)
		return ErrBadSignature
	}
	return nil
}

func (c *contractBattle) Spawn(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("GetValues failed: %v", err)
		return
	}

	cd := &CreateData{}
	var sv *SignedValue
	sv, err = openSigned(inst.Spawn.Args, "create", cd)
	if err != nil {
		return
	}
	err = verifySigned(sv, cd.Player)
	if err != nil {
		return
	}
	elBuf := inst.Spawn.Args.Search("eventlog")
	if len(elBuf) != 32 {
		err = xerrors.New("missing or malformed eventlog argument")
		return
	}
	eventLogID := byzcoin.NewInstanceID(elBuf)

	var room *RoomStorage
	room, err = NewRoom(cd.Player, cd.Side, cd.Capacity, cd.Stake, cd.Mode, cd.OracleKey, cd.Now)
	if err != nil {
		return
	}
	room.RoomID = inst.DeriveID("")
	room.EscrowID = inst.DeriveID("escrow")
	room.EventLogID = eventLogID

	escrow := &EscrowStorage{
		RoomID:   room.RoomID,
		Balance:  cd.Stake,
		Deposits: []Deposit{{Player: cd.Player, Amount: cd.Stake}},
	}

	var roomBuf, escrowBuf []byte
	roomBuf, err = protobuf.Encode(room)
	if err != nil {
		log.Errorf("Protobuf encode failed: %v", err)
		return
	}
	escrowBuf, err = protobuf.Encode(escrow)
	if err != nil {
		log.Errorf("Protobuf encode failed: %v", err)
		return
	}
	var evSC byzcoin.StateChange
	evSC, err = appendEvents(rst, eventLogID, []Event{{
		Type:      EventCreated,
		RoomID:    room.RoomID,
		EscrowID:  room.EscrowID,
		Player:    cd.Player,
		Capacity:  cd.Capacity,
		Stake:     cd.Stake,
		Mode:      cd.Mode,
		Timestamp: cd.Now,
	}})
	if err != nil {
		return
	}
	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Create, room.RoomID, ContractBattleID, roomBuf, darcID),
		byzcoin.NewStateChange(byzcoin.Create, room.EscrowID, ContractEscrowID, escrowBuf, darcID),
		evSC,
	}
	return
}

func (c *contractBattle) Invoke(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		log.Errorf("GetValues failed: %v", err)
		return
	}
	switch inst.Invoke.Command {
	case "join":
		sc, err = c.join(rst, inst, darcID)
	case "record":
		sc, err = c.record(rst, inst, darcID)
	case "settle":
		sc, err = c.settle(rst, inst, darcID)
	case "cancel":
		sc, err = c.cancel(rst, inst, darcID)
	default:
		err = xerrors.Errorf("unknown command: %s", inst.Invoke.Command)
	}
	return
}

func (c *contractBattle) Delete(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	return nil, coins, xerrors.New("rooms are removed by settle or cancel")
}

func (c *contractBattle) join(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, darcID darc.ID) ([]byzcoin.StateChange, error) {
	room := &c.RoomStorage
	jd := &JoinData{}
	sv, err := openSigned(inst.Invoke.Args, "join", jd)
	if err != nil {
		return nil, err
	}
	err = verifySigned(sv, jd.Player)
	if err != nil {
		return nil, err
	}
	filled, err := room.Join(jd.Player, jd.Side, jd.Stake, jd.Now)
	if err != nil {
		return nil, err
	}
	events := []Event{{
		Type:      EventJoined,
		RoomID:    room.RoomID,
		EscrowID:  room.EscrowID,
		Player:    jd.Player,
		Count:     len(room.Members),
		Capacity:  room.Capacity,
		Stake:     jd.Stake,
		Timestamp: jd.Now,
	}}
	if filled {
		// The draw seed binds the outcome to this very instruction.
		h := sha256.New()
		h.Write(inst.Hash())
		h.Write(room.RoomID.Slice())
		room.Fill(jd.Now, h.Sum(nil))
		events = append(events, Event{
			Type:       EventFull,
			RoomID:     room.RoomID,
			EscrowID:   room.EscrowID,
			Members:    room.Members,
			TotalStake: room.TotalStake,
			UnlockTime: room.UnlockTime,
			Mode:       room.Mode,
			Outcome:    room.Outcome,
			Winners:    room.Winners,
			Timestamp:  jd.Now,
		})
	}

	escrow, escrowDarc, err := c.getEscrow(rst)
	if err != nil {
		return nil, err
	}
	escrow.Balance += jd.Stake
	escrow.Deposits = append(escrow.Deposits, Deposit{Player: jd.Player, Amount: jd.Stake})

	roomBuf, err := protobuf.Encode(room)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode room: %v", err)
	}
	escrowBuf, err := protobuf.Encode(escrow)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode escrow: %v", err)
	}
	evSC, err := appendEvents(rst, room.EventLogID, events)
	if err != nil {
		return nil, err
	}
	return []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Update, inst.InstanceID, ContractBattleID, roomBuf, darcID),
		byzcoin.NewStateChange(byzcoin.Update, room.EscrowID, ContractEscrowID, escrowBuf, escrowDarc),
		evSC,
	}, nil
}

func (c *contractBattle) record(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, darcID darc.ID) ([]byzcoin.StateChange, error) {
	room := &c.RoomStorage
	rd := &RecordData{}
	sv, err := openSigned(inst.Invoke.Args, "record", rd)
	if err != nil {
		return nil, err
	}
	// The callback must carry the oracle's signature, not a member's.
	err = verifySigned(sv, room.OracleKey)
	if err != nil {
		return nil, err
	}
	err = room.Record(rd.Pointer, rd.Outcome, rd.Winner, rd.Now)
	if err != nil {
		return nil, err
	}
	roomBuf, err := protobuf.Encode(room)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode room: %v", err)
	}
	evSC, err := appendEvents(rst, room.EventLogID, []Event{{
		Type:       EventResultPublished,
		RoomID:     room.RoomID,
		EscrowID:   room.EscrowID,
		Outcome:    room.Outcome,
		Winners:    room.Winners,
		Pointer:    room.ResultPtr,
		UnlockTime: room.UnlockTime,
		Timestamp:  rd.Now,
	}})
	if err != nil {
		return nil, err
	}
	return []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Update, inst.InstanceID, ContractBattleID, roomBuf, darcID),
		evSC,
	}, nil
}

func (c *contractBattle) settle(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, darcID darc.ID) ([]byzcoin.StateChange, error) {
	room := &c.RoomStorage
	sd := &SettleData{}
	sv, err := openSigned(inst.Invoke.Args, "settle", sd)
	if err != nil {
		return nil, err
	}
	err = verifySigned(sv, sd.Player)
	if err != nil {
		return nil, err
	}
	amount, residue, done, err := room.Settle(sd.Player, sd.Now)
	if err != nil {
		return nil, err
	}

	escrow, escrowDarc, err := c.getEscrow(rst)
	if err != nil {
		return nil, err
	}
	escrow.Balance -= amount
	escrow.Payouts = append(escrow.Payouts, Deposit{Player: sd.Player, Amount: amount})
	if done && residue > 0 {
		escrow.Balance -= residue
		escrow.Payouts = append(escrow.Payouts, Deposit{Player: room.Creator, Amount: residue})
	}

	evSC, err := appendEvents(rst, room.EventLogID, []Event{{
		Type:      EventClaimed,
		RoomID:    room.RoomID,
		EscrowID:  room.EscrowID,
		Player:    sd.Player,
		Amount:    amount,
		Residue:   residue,
		Timestamp: sd.Now,
	}})
	if err != nil {
		return nil, err
	}
	if done {
		// Terminal claim: the room and its drained escrow go away.
		return []byzcoin.StateChange{
			byzcoin.NewStateChange(byzcoin.Remove, inst.InstanceID, ContractBattleID, nil, darcID),
			byzcoin.NewStateChange(byzcoin.Remove, room.EscrowID, ContractEscrowID, nil, escrowDarc),
			evSC,
		}, nil
	}
	roomBuf, err := protobuf.Encode(room)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode room: %v", err)
	}
	escrowBuf, err := protobuf.Encode(escrow)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode escrow: %v", err)
	}
	return []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Update, inst.InstanceID, ContractBattleID, roomBuf, darcID),
		byzcoin.NewStateChange(byzcoin.Update, room.EscrowID, ContractEscrowID, escrowBuf, escrowDarc),
		evSC,
	}, nil
}

func (c *contractBattle) cancel(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, darcID darc.ID) ([]byzcoin.StateChange, error) {
	room := &c.RoomStorage
	cd := &CancelData{}
	sv, err := openSigned(inst.Invoke.Args, "cancel", cd)
	if err != nil {
		return nil, err
	}
	err = verifySigned(sv, cd.Player)
	if err != nil {
		return nil, err
	}
	err = room.Cancel(cd.Player)
	if err != nil {
		return nil, err
	}
	_, escrowDarc, err := c.getEscrow(rst)
	if err != nil {
		return nil, err
	}
	evSC, err := appendEvents(rst, room.EventLogID, []Event{{
		Type:      EventCancelled,
		RoomID:    room.RoomID,
		EscrowID:  room.EscrowID,
		Player:    cd.Player,
		Members:   room.Members,
		Stake:     room.Stake,
		Timestamp: cd.Now,
	}})
	if err != nil {
		return nil, err
	}
	return []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Remove, inst.InstanceID, ContractBattleID, nil, darcID),
		byzcoin.NewStateChange(byzcoin.Remove, room.EscrowID, ContractEscrowID, nil, escrowDarc),
		evSC,
	}, nil
}

func (c *contractBattle) getEscrow(rst byzcoin.ReadOnlyStateTrie) (*EscrowStorage, darc.ID, error) {
	v, _, cid, escrowDarc, err := rst.GetValues(c.EscrowID.Slice())
	if err != nil {
		return nil, nil, xerrors.Errorf("couldn't get escrow: %v", err)
	}
	if cid != ContractEscrowID {
		return nil, nil, xerrors.New("instance is not an escrow")
	}
	escrow := &EscrowStorage{}
	err = protobuf.Decode(v, escrow)
	if err != nil {
		return nil, nil, xerrors.Errorf("couldn't decode escrow: %v", err)
	}
	return escrow, escrowDarc, nil
}
