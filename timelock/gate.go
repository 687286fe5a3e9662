package timelock

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// A release identity binds a label to the earliest moment the sealed data
// may be opened. The unlock time is appended to the label as eight
// big-endian bytes so the gate can check it without any other state.

var (
	ErrTooEarly          = xerrors.New("release time not reached")
	ErrMalformedIdentity = xerrors.New("malformed release identity")
)

func ReleaseIdentity(label []byte, unlockTime int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(unlockTime))
	id := make([]byte, 0, len(label)+8)
	id = append(id, label...)
	return append(id, buf...)
}

// UnlockTimeOf parses the timestamp suffix of a release identity.
func UnlockTimeOf(identity []byte) (int64, error) {
	if len(identity) < 8 {
		return 0, ErrMalformedIdentity
	}
	return int64(binary.BigEndian.Uint64(identity[len(identity)-8:])), nil
}

// VerifyRelease rejects a release attempt before the identity's unlock time.
func VerifyRelease(identity []byte, now int64) error {
	t, err := UnlockTimeOf(identity)
	if err != nil {
		return err
	}
	if now < t {
		return ErrTooEarly
	}
	return nil
}
