package battle

import "golang.org/x/xerrors"

// Failure modes of the room state machine. Contract methods return these
// unwrapped so that callers and tests can match on them.
var (
	ErrInvalidCapacity    = xerrors.New("capacity out of range")
	ErrBelowMinimumStake  = xerrors.New("stake below minimum")
	ErrInvalidSide        = xerrors.New("invalid side")
	ErrInvalidMode        = xerrors.New("invalid mode")
	ErrRoomFull           = xerrors.New("room is full")
	ErrAlreadyJoined      = xerrors.New("player already joined")
	ErrWrongStakeAmount   = xerrors.New("stake does not match the room stake")
	ErrRoomAlreadyStarted = xerrors.New("room already started")
	ErrRoomNotStarted     = xerrors.New("room not started")
	ErrResultAlreadySet   = xerrors.New("result already recorded")
	ErrInvalidWinner      = xerrors.New("winner is not a member")
	ErrEmptyPointer       = xerrors.New("empty result pointer")
	ErrOutcomeNotSet      = xerrors.New("outcome not set")
	ErrTooEarly           = xerrors.New("unlock time not reached")
	ErrAlreadySettled     = xerrors.New("share already claimed")
	ErrNotAWinner         = xerrors.New("caller is not a winner")
	ErrNotCreator         = xerrors.New("caller is not the room creator")
	ErrBadTimestamp       = xerrors.New("timestamp is older than the room state")
	ErrBadSignature       = xerrors.New("signature verification failed")
)
