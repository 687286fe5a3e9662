package battle

import (
	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// The battle unit registers the coinflip contracts with the ByzCoin service
// and exposes transaction and query handlers to clients.

var ServiceName = "CoinflipService"
var battleID onet.ServiceID

type Service struct {
	*onet.ServiceProcessor
	roster     *onet.Roster
	genesis    skipchain.SkipBlockID
	byzID      skipchain.SkipBlockID
	gMsg       *byzcoin.CreateGenesisBlock
	signer     darc.Signer
	signerCtr  uint64
	eventLogID byzcoin.InstanceID

	scService  *skipchain.Service
	byzService *byzcoin.Service
}

func init() {
	var err error
	battleID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessages(&InitUnitRequest{}, &InitUnitReply{},
		&CreateRoomRequest{}, &CreateRoomReply{}, &JoinRoomRequest{},
		&RecordResultRequest{}, &SettleRequest{}, &CancelRequest{},
		&RoomTxReply{}, &GetRoomRequest{}, &GetRoomReply{},
		&GetEscrowRequest{}, &GetEscrowReply{}, &PollEventsRequest{},
		&PollEventsReply{}, &UnitInfoRequest{}, &UnitInfoReply{})
}

// InitUnit sets up the unit: a skipchain block recording the unit
// information, the ByzCoin genesis with rules for the given identities and
// the singleton event log instance.
func (s *Service) InitUnit(req *InitUnitRequest) (*InitUnitReply, error) {
	genesisReply, err := utils.CreateGenesisBlock(s.scService, req.Roster, req.MHeight, req.BHeight)
	if err != nil {
		log.Errorf("[InitUnit] Could not create the skipchain genesis block: %v", err)
		return nil, err
	}
	s.genesis = genesisReply.Latest.Hash
	s.roster = req.Roster

	unitInfo := &UnitInfo{UnitName: ServiceName, Txns: []string{"create", "join", "record", "settle", "cancel"}}
	enc, err := protobuf.Encode(unitInfo)
	if err != nil {
		log.Errorf("[InitUnit] Error in protobuf encoding: %v", err)
		return nil, err
	}
	err = utils.StoreBlock(s.scService, s.genesis, enc)
	if err != nil {
		return nil, err
	}

	s.signer = darc.NewSignerEd25519(nil, nil)
	ids := append([]darc.Identity{s.signer.Identity()}, req.Identities...)
	s.gMsg, err = byzcoin.DefaultGenesisMsg(byzcoin.CurrentVersion, s.roster,
		[]string{
			"spawn:" + ContractBattleID,
			"invoke:" + ContractBattleID + ".join",
			"invoke:" + ContractBattleID + ".record",
			"invoke:" + ContractBattleID + ".settle",
			"invoke:" + ContractBattleID + ".cancel",
			"spawn:" + ContractEventLogID,
		}, ids...)
	if err != nil {
		log.Errorf("[InitUnit] Could not create the default genesis message for Byzcoin: %v", err)
		return nil, err
	}
	s.gMsg.BlockInterval = req.BlkInterval * req.DurationType
	resp, err := s.byzService.CreateGenesisBlock(s.gMsg)
	if err != nil {
		log.Errorf("[InitUnit] Could not create the Byzcoin genesis block: %v", err)
		return nil, err
	}
	s.byzID = resp.Skipblock.SkipChainID()
	s.signerCtr = uint64(1)

	err = s.spawnEventLog()
	if err != nil {
		return nil, err
	}
	return &InitUnitReply{
		Genesis:     genesisReply.Latest.Hash,
		ByzID:       s.byzID,
		EventLogID:  s.eventLogID,
		GenesisDarc: s.gMsg.GenesisDarc,
	}, nil
}

func (s *Service) spawnEventLog() error {
	ctx := byzcoin.NewClientTransaction(byzcoin.CurrentVersion,
		byzcoin.Instruction{
			InstanceID: byzcoin.NewInstanceID(s.gMsg.GenesisDarc.GetBaseID()),
			Spawn: &byzcoin.Spawn{
				ContractID: ContractEventLogID,
			},
			SignerCounter: []uint64{s.signerCtr},
		})
	err := ctx.FillSignersAndSignWith(s.signer)
	if err != nil {
		log.Errorf("Transaction sign failed: %v", err)
		return err
	}
	_, err = s.byzService.AddTransaction(&byzcoin.AddTxRequest{
		Version:       byzcoin.CurrentVersion,
		SkipchainID:   s.byzID,
		Transaction:   ctx,
		InclusionWait: 4,
	})
	if err != nil {
		log.Errorf("[InitUnit] Could not spawn the event log: %v", err)
		return err
	}
	s.signerCtr++
	s.eventLogID = ctx.Instructions[0].DeriveID("")
	return nil
}

func (s *Service) CreateRoom(req *CreateRoomRequest) (*CreateRoomReply, error) {
	_, err := s.byzService.AddTransaction(&byzcoin.AddTxRequest{
		Version:       byzcoin.CurrentVersion,
		SkipchainID:   s.byzID,
		Transaction:   req.Ctx,
		InclusionWait: req.Wait,
	})
	if err != nil {
		log.Errorf("create room: add transaction failed: %v", err)
		return nil, err
	}
	return &CreateRoomReply{
		RoomID:   req.Ctx.Instructions[0].DeriveID(""),
		EscrowID: req.Ctx.Instructions[0].DeriveID("escrow"),
	}, nil
}

func (s *Service) JoinRoom(req *JoinRoomRequest) (*RoomTxReply, error) {
	return s.addRoomTx(req.Ctx, req.Wait, "join room")
}

func (s *Service) RecordResult(req *RecordResultRequest) (*RoomTxReply, error) {
	return s.addRoomTx(req.Ctx, req.Wait, "record result")
}

// Settle refuses transactions before the room's unlock time by the
// service's own clock, in addition to the in-contract timestamp check.
func (s *Service) Settle(req *SettleRequest) (*RoomTxReply, error) {
	if len(req.Ctx.Instructions) != 1 {
		return nil, xerrors.New("expected a single instruction")
	}
	room, err := s.getRoom(req.Ctx.Instructions[0].InstanceID)
	if err != nil {
		return nil, err
	}
	if utils.UnixMilli() < room.UnlockTime {
		return nil, ErrTooEarly
	}
	return s.addRoomTx(req.Ctx, req.Wait, "settle")
}

func (s *Service) Cancel(req *CancelRequest) (*RoomTxReply, error) {
	return s.addRoomTx(req.Ctx, req.Wait, "cancel")
}

func (s *Service) addRoomTx(ctx byzcoin.ClientTransaction, wait int, label string) (*RoomTxReply, error) {
	_, err := s.byzService.AddTransaction(&byzcoin.AddTxRequest{
		Version:       byzcoin.CurrentVersion,
		SkipchainID:   s.byzID,
		Transaction:   ctx,
		InclusionWait: wait,
	})
	if err != nil {
		log.Errorf("%s: add transaction failed: %v", label, err)
		return nil, err
	}
	return &RoomTxReply{}, nil
}

func (s *Service) GetRoom(req *GetRoomRequest) (*GetRoomReply, error) {
	room, err := s.getRoom(req.RoomID)
	if err != nil {
		return nil, err
	}
	return &GetRoomReply{Room: *room}, nil
}

func (s *Service) GetEscrow(req *GetEscrowRequest) (*GetEscrowReply, error) {
	v, err := s.getValue(req.EscrowID)
	if err != nil {
		return nil, err
	}
	escrow := &EscrowStorage{}
	err = protobuf.Decode(v, escrow)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return &GetEscrowReply{Escrow: *escrow}, nil
}

// PollEvents returns the events with a sequence number strictly greater
// than the given cursor, in ascending order.
func (s *Service) PollEvents(req *PollEventsRequest) (*PollEventsReply, error) {
	v, err := s.getValue(s.eventLogID)
	if err != nil {
		return nil, err
	}
	elog := &EventLog{}
	err = protobuf.Decode(v, elog)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	reply := &PollEventsReply{}
	for _, ev := range elog.Events {
		if ev.Seq > req.AfterSeq {
			reply.Events = append(reply.Events, ev)
		}
	}
	return reply, nil
}

// GetUnitInfo lets a late-joining client attach to an initialized unit.
func (s *Service) GetUnitInfo(req *UnitInfoRequest) (*UnitInfoReply, error) {
	if s.gMsg == nil {
		return nil, xerrors.New("unit not initialized")
	}
	return &UnitInfoReply{
		ByzID:       s.byzID,
		EventLogID:  s.eventLogID,
		GenesisDarc: s.gMsg.GenesisDarc,
	}, nil
}

func (s *Service) getRoom(id byzcoin.InstanceID) (*RoomStorage, error) {
	v, err := s.getValue(id)
	if err != nil {
		return nil, err
	}
	room := &RoomStorage{}
	err = protobuf.Decode(v, room)
	if err != nil {
		log.Errorf("Protobuf decode failed: %v", err)
		return nil, err
	}
	return room, nil
}

func (s *Service) getValue(id byzcoin.InstanceID) ([]byte, error) {
	resp, err := s.byzService.GetProof(&byzcoin.GetProof{
		Version: byzcoin.CurrentVersion,
		ID:      s.byzID,
		Key:     id.Slice(),
	})
	if err != nil {
		log.Errorf("get proof failed: %v", err)
		return nil, err
	}
	if !resp.Proof.InclusionProof.Match(id.Slice()) {
		return nil, xerrors.New("no such instance")
	}
	v, _, _, err := resp.Proof.Get(id.Slice())
	if err != nil {
		log.Errorf("reading proof value failed: %v", err)
		return nil, err
	}
	return v, nil
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		byzService:       c.Service(byzcoin.ServiceName).(*byzcoin.Service),
		scService:        c.Service(skipchain.ServiceName).(*skipchain.Service),
	}
	err := s.RegisterHandlers(s.InitUnit, s.CreateRoom, s.JoinRoom,
		s.RecordResult, s.Settle, s.Cancel, s.GetRoom, s.GetEscrow,
		s.PollEvents, s.GetUnitInfo)
	if err != nil {
		return nil, xerrors.Errorf("could not register handlers: %v", err)
	}
	err = byzcoin.RegisterContract(c, ContractBattleID, contractBattleFromBytes)
	if err != nil {
		return nil, err
	}
	err = byzcoin.RegisterContract(c, ContractEscrowID, contractEscrowFromBytes)
	if err != nil {
		return nil, err
	}
	err = byzcoin.RegisterContract(c, ContractEventLogID, contractEventLogFromBytes)
	if err != nil {
		return nil, err
	}
	return s, nil
}
