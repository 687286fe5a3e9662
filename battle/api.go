package battle

import (
	"time"

	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

type Client struct {
	*onet.Client
	roster     *onet.Roster
	signer     darc.Signer
	signerCtr  uint64
	gDarc      darc.Darc
	eventLogID byzcoin.InstanceID
}

func NewClient(r *onet.Roster, signer darc.Signer) *Client {
	return &Client{
		Client: onet.NewClient(cothority.Suite, ServiceName),
		roster: r,
		signer: signer,
	}
}

// PlayerID returns the hex-encoded public key that identifies a player on
// the ledger.
func PlayerID(kp *key.Pair) (string, error) {
	return utils.PointToHex(kp.Public)
}

// signValue wraps a protobuf-encoded payload with a schnorr signature over
// its digest, the form the contracts verify.
func signValue(kp *key.Pair, payload interface{}) ([]byte, error) {
	data, err := protobuf.Encode(payload)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode payload: %v", err)
	}
	sig, err := utils.SignBytes(kp.Private, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign payload: %v", err)
	}
	return protobuf.Encode(&SignedValue{Data: data, Sig: sig})
}

// InitUnit initializes the unit. The extra identities are granted the same
// darc rules as the client's own signer, so secondary clients can attach
// later and submit transactions.
func (c *Client) InitUnit(extra []darc.Identity, mHeight int, bHeight int, interval time.Duration, typeDur time.Duration) (*InitUnitReply, error) {
	if len(c.roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	req := &InitUnitRequest{
		Roster:       c.roster,
		Identities:   append([]darc.Identity{c.signer.Identity()}, extra...),
		MHeight:      2,
		BHeight:      2,
		BlkInterval:  interval,
		DurationType: typeDur,
	}
	if mHeight > 0 {
		req.MHeight = mHeight
	}
	if bHeight > 0 {
		req.BHeight = bHeight
	}
	reply := &InitUnitReply{}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	if err != nil {
		return nil, err
	}
	c.gDarc = reply.GenesisDarc
	c.eventLogID = reply.EventLogID
	c.signerCtr = uint64(1)
	return reply, nil
}

// Attach connects the client to a unit that was initialized elsewhere.
func (c *Client) Attach() error {
	if len(c.roster.List) == 0 {
		return xerrors.New("got an empty roster list")
	}
	reply := &UnitInfoReply{}
	err := c.SendProtobuf(c.roster.List[0], &UnitInfoRequest{}, reply)
	if err != nil {
		return err
	}
	c.gDarc = reply.GenesisDarc
	c.eventLogID = reply.EventLogID
	c.signerCtr = uint64(1)
	return nil
}

func (c *Client) CreateRoom(kp *key.Pair, side int, capacity int, stake uint64, mode int, oracleKey string, wait int) (*CreateRoomReply, error) {
	player, err := PlayerID(kp)
	if err != nil {
		return nil, err
	}
	svBuf, err := signValue(kp, &CreateData{
		Player:    player,
		Side:      side,
		Capacity:  capacity,
		Stake:     stake,
		Mode:      mode,
		OracleKey: oracleKey,
		Now:       utils.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	ctx := byzcoin.NewClientTransaction(byzcoin.CurrentVersion,
		byzcoin.Instruction{
			InstanceID: byzcoin.NewInstanceID(c.gDarc.GetBaseID()),
			Spawn: &byzcoin.Spawn{
				ContractID: ContractBattleID,
				Args: []byzcoin.Argument{
					{Name: "create", Value: svBuf},
					{Name: "eventlog", Value: c.eventLogID.Slice()},
				},
			},
			SignerCounter: []uint64{c.signerCtr},
		})
	err = ctx.FillSignersAndSignWith(c.signer)
	if err != nil {
		log.Errorf("Signing the transaction failed: %v", err)
		return nil, err
	}
	reply := &CreateRoomReply{}
	err = c.SendProtobuf(c.roster.List[0], &CreateRoomRequest{Ctx: ctx, Wait: wait}, reply)
	if err != nil {
		return nil, err
	}
	c.signerCtr++
	return reply, nil
}

func (c *Client) JoinRoom(kp *key.Pair, roomID byzcoin.InstanceID, side int, stake uint64, wait int) error {
	player, err := PlayerID(kp)
	if err != nil {
		return err
	}
	svBuf, err := signValue(kp, &JoinData{
		Player: player,
		Side:   side,
		Stake:  stake,
		Now:    utils.UnixMilli(),
	})
	if err != nil {
		return err
	}
	ctx, err := c.roomTx(roomID, "join", svBuf)
	if err != nil {
		return err
	}
	return c.sendRoomTx(&JoinRoomRequest{Ctx: *ctx, Wait: wait})
}

// RecordResult is the relay's callback. It must be signed with the room's
// oracle key.
func (c *Client) RecordResult(oracle *key.Pair, roomID byzcoin.InstanceID, pointer string, outcome int, winner string, wait int) error {
	svBuf, err := signValue(oracle, &RecordData{
		Pointer: pointer,
		Outcome: outcome,
		Winner:  winner,
		Now:     utils.UnixMilli(),
	})
	if err != nil {
		return err
	}
	ctx, err := c.roomTx(roomID, "record", svBuf)
	if err != nil {
		return err
	}
	return c.sendRoomTx(&RecordResultRequest{Ctx: *ctx, Wait: wait})
}

func (c *Client) Settle(kp *key.Pair, roomID byzcoin.InstanceID, wait int) error {
	player, err := PlayerID(kp)
	if err != nil {
		return err
	}
	svBuf, err := signValue(kp, &SettleData{
		Player: player,
		Now:    utils.UnixMilli(),
	})
	if err != nil {
		return err
	}
	ctx, err := c.roomTx(roomID, "settle", svBuf)
	if err != nil {
		return err
	}
	return c.sendRoomTx(&SettleRequest{Ctx: *ctx, Wait: wait})
}

func (c *Client) Cancel(kp *key.Pair, roomID byzcoin.InstanceID, wait int) error {
	player, err := PlayerID(kp)
	if err != nil {
		return err
	}
	svBuf, err := signValue(kp, &CancelData{
		Player: player,
		Now:    utils.UnixMilli(),
	})
	if err != nil {
		return err
	}
	ctx, err := c.roomTx(roomID, "cancel", svBuf)
	if err != nil {
		return err
	}
	return c.sendRoomTx(&CancelRequest{Ctx: *ctx, Wait: wait})
}

// roomTx builds and signs a single-instruction invoke on the room instance.
func (c *Client) roomTx(roomID byzcoin.InstanceID, command string, svBuf []byte) (*byzcoin.ClientTransaction, error) {
	ctx := byzcoin.NewClientTransaction(byzcoin.CurrentVersion,
		byzcoin.Instruction{
			InstanceID: roomID,
			Invoke: &byzcoin.Invoke{
				ContractID: ContractBattleID,
				Command:    command,
				Args: []byzcoin.Argument{
					{Name: command, Value: svBuf},
				},
			},
			SignerCounter: []uint64{c.signerCtr},
		})
	err := ctx.FillSignersAndSignWith(c.signer)
	if err != nil {
		log.Errorf("Signing the transaction failed: %v", err)
		return nil, err
	}
	return &ctx, nil
}

func (c *Client) sendRoomTx(req interface{}) error {
	reply := &RoomTxReply{}
	err := c.SendProtobuf(c.roster.List[0], req, reply)
	if err != nil {
		return err
	}
	c.signerCtr++
	return nil
}

func (c *Client) GetRoom(roomID byzcoin.InstanceID) (*RoomStorage, error) {
	reply := &GetRoomReply{}
	err := c.SendProtobuf(c.roster.List[0], &GetRoomRequest{RoomID: roomID}, reply)
	if err != nil {
		return nil, err
	}
	return &reply.Room, nil
}

func (c *Client) GetEscrow(escrowID byzcoin.InstanceID) (*EscrowStorage, error) {
	reply := &GetEscrowReply{}
	err := c.SendProtobuf(c.roster.List[0], &GetEscrowRequest{EscrowID: escrowID}, reply)
	if err != nil {
		return nil, err
	}
	return &reply.Escrow, nil
}

func (c *Client) PollEvents(afterSeq uint64) ([]Event, error) {
	reply := &PollEventsReply{}
	err := c.SendProtobuf(c.roster.List[0], &PollEventsRequest{AfterSeq: afterSeq}, reply)
	if err != nil {
		return nil, err
	}
	return reply.Events, nil
}
