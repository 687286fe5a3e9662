package battle

import (
	"time"

	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3"
)

// Room and escrow parameters.
const (
	MinCapacity  = 2
	MaxCapacity  = 10
	MinStake     = uint64(1000000)
	LockDuration = int64(5000)
)

// Coin sides.
const (
	SideHeads = 1
	SideTails = 2
)

// Outcome modes. In ModeLedgerDraw the outcome bit is drawn on-chain when
// the room fills; in ModeRelayPick the relay picks the winner off-chain and
// records it together with the result pointer.
const (
	ModeLedgerDraw = 1
	ModeRelayPick  = 2
)

// Event types.
const (
	EventCreated = iota + 1
	EventJoined
	EventFull
	EventResultPublished
	EventClaimed
	EventCancelled
)

// RoomStorage is the on-chain state of one battle room.
type RoomStorage struct {
	RoomID     byzcoin.InstanceID
	EscrowID   byzcoin.InstanceID
	EventLogID byzcoin.InstanceID
	Creator    string
	OracleKey  string
	Capacity   int
	Members    []string
	Choices    []int
	Stake      uint64
	TotalStake uint64
	CreateTime int64
	FillTime   int64
	UnlockTime int64
	Mode       int
	Started    bool
	Outcome    int
	Winners    []string
	Claimed    []string
	ResultPtr  string
	Settled    bool
}

// Deposit is one stake movement recorded in the escrow.
type Deposit struct {
	Player string
	Amount uint64
}

// EscrowStorage holds the pooled stakes of one room. Escrow instances are
// only ever touched through state changes emitted by the battle contract.
type EscrowStorage struct {
	RoomID   byzcoin.InstanceID
	Balance  uint64
	Deposits []Deposit
	Payouts  []Deposit
}

// Event is one entry of the unit's append-only event log. Type selects
// which of the optional fields are meaningful.
type Event struct {
	Seq        uint64
	Type       int
	RoomID     byzcoin.InstanceID
	EscrowID   byzcoin.InstanceID
	Player     string
	Capacity   int
	Count      int
	Stake      uint64
	TotalStake uint64
	Members    []string
	UnlockTime int64
	Mode       int
	Outcome    int
	Winners    []string
	Pointer    string
	Amount     uint64
	Residue    uint64
	Timestamp  int64
}

// EventLog is the storage of the singleton event log instance.
type EventLog struct {
	NextSeq uint64
	Events  []Event
}

// SignedValue wraps a protobuf-encoded argument together with a schnorr
// signature over its sha256 digest.
type SignedValue struct {
	Data []byte
	Sig  []byte
}

// CreateData is the signed payload of a room spawn.
type CreateData struct {
	Player    string
	Side      int
	Capacity  int
	Stake     uint64
	Mode      int
	OracleKey string
	Now       int64
}

// JoinData is the signed payload of a join invocation.
type JoinData struct {
	Player string
	Side   int
	Stake  uint64
	Now    int64
}

// RecordData is the result callback payload, signed by the room's oracle key.
type RecordData struct {
	Pointer string
	Outcome int
	Winner  string
	Now     int64
}

// SettleData is the signed payload of a settle invocation.
type SettleData struct {
	Player string
	Now    int64
}

// CancelData is the signed payload of a cancel invocation.
type CancelData struct {
	Player string
	Now    int64
}

// UnitInfo is stored on the unit skipchain at initialization.
type UnitInfo struct {
	UnitName string
	Txns     []string
}

type InitUnitRequest struct {
	Roster       *onet.Roster
	Identities   []darc.Identity
	MHeight      int
	BHeight      int
	BlkInterval  time.Duration
	DurationType time.Duration
}

type InitUnitReply struct {
	Genesis     []byte
	ByzID       []byte
	EventLogID  byzcoin.InstanceID
	GenesisDarc darc.Darc
}

type UnitInfoRequest struct {
}

type UnitInfoReply struct {
	ByzID       []byte
	EventLogID  byzcoin.InstanceID
	GenesisDarc darc.Darc
}

type CreateRoomRequest struct {
	Ctx  byzcoin.ClientTransaction
	Wait int
}

type CreateRoomReply struct {
	RoomID   byzcoin.InstanceID
	EscrowID byzcoin.InstanceID
}

type JoinRoomRequest struct {
	Ctx  byzcoin.ClientTransaction
	Wait int
}

type RecordResultRequest struct {
	Ctx  byzcoin.ClientTransaction
	Wait int
}

type SettleRequest struct {
	Ctx  byzcoin.ClientTransaction
	Wait int
}

type CancelRequest struct {
	Ctx  byzcoin.ClientTransaction
	Wait int
}

type RoomTxReply struct {
}

type GetRoomRequest struct {
	RoomID byzcoin.InstanceID
}

type GetRoomReply struct {
	Room RoomStorage
}

type GetEscrowRequest struct {
	EscrowID byzcoin.InstanceID
}

type GetEscrowReply struct {
	Escrow EscrowStorage
}

type PollEventsRequest struct {
	AfterSeq uint64
}

type PollEventsReply struct {
	Events []Event
}
