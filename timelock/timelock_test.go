package timelock

import (
	"testing"

	"github.com/ceyhunalp/coinflip/utils"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
)

func TestGate(t *testing.T) {
	identity := ReleaseIdentity([]byte("room-1"), 10000)
	unlock, err := UnlockTimeOf(identity)
	require.NoError(t, err)
	require.Equal(t, int64(10000), unlock)

	require.Equal(t, ErrTooEarly, VerifyRelease(identity, 9999))
	require.NoError(t, VerifyRelease(identity, 10000))
	require.NoError(t, VerifyRelease(identity, 20000))

	_, err = UnlockTimeOf([]byte("short"))
	require.Equal(t, ErrMalformedIdentity, err)
}

func TestSealOpen(t *testing.T) {
	authority := key.NewKeyPair(cothority.Suite)
	data := []byte("three heads out of five")

	blob, err := Seal(authority.Public, data, []byte("room-1"), 5000)
	require.NoError(t, err)
	require.NotEqual(t, data, blob.Data)

	seed, err := RecoverSeed(authority.Private, blob)
	require.NoError(t, err)
	opened, err := Open(blob, seed)
	require.NoError(t, err)
	require.Equal(t, data, opened)

	// A wrong seed must not open the blob.
	bad := make([]byte, len(seed))
	copy(bad, seed)
	bad[0] ^= 0xff
	_, err = Open(blob, bad)
	require.Error(t, err)
}

func TestService_Release(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	defer local.CloseAll()
	_, roster, _ := local.GenTree(3, true)

	cl := NewClient(roster)
	authority, err := cl.PublicKey()
	require.NoError(t, err)

	requester := key.NewKeyPair(cothority.Suite)
	data := []byte("sealed result")

	// Already past its unlock time: released immediately.
	blob, err := Seal(authority, data, []byte("room-1"), utils.UnixMilli()-1)
	require.NoError(t, err)
	seed, err := cl.Release(requester, blob)
	require.NoError(t, err)
	opened, err := Open(blob, seed)
	require.NoError(t, err)
	require.Equal(t, data, opened)

	// Still locked: the authority refuses.
	locked, err := Seal(authority, data, []byte("room-2"), utils.UnixMilli()+60000)
	require.NoError(t, err)
	_, err = cl.Release(requester, locked)
	require.Error(t, err)

	// A session signature by a key other than the claimed requester is
	// rejected even for an unlocked blob.
	other := key.NewKeyPair(cothority.Suite)
	requesterHex, err := utils.PointToHex(requester.Public)
	require.NoError(t, err)
	badSig, err := utils.SignBytes(other.Private, blob.Identity)
	require.NoError(t, err)
	err = cl.SendProtobuf(roster.List[0], &ReleaseRequest{
		Blob:      *blob,
		Requester: requesterHex,
		Sig:       badSig,
	}, &ReleaseReply{})
	require.Error(t, err)
}
