package utils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
)

func TestSignVerifyBytes(t *testing.T) {
	kp := key.NewKeyPair(cothority.Suite)
	pub, err := PointToHex(kp.Public)
	require.NoError(t, err)

	data := []byte("signed payload")
	sig, err := SignBytes(kp.Private, data)
	require.NoError(t, err)
	require.NoError(t, VerifyBytes(pub, data, sig))
	require.Error(t, VerifyBytes(pub, []byte("tampered"), sig))

	other := key.NewKeyPair(cothority.Suite)
	otherHex, err := PointToHex(other.Public)
	require.NoError(t, err)
	require.Error(t, VerifyBytes(otherHex, data, sig))
}

func TestReadKeyPair(t *testing.T) {
	dir, err := ioutil.TempDir("", "keypair")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	kp := key.NewKeyPair(cothority.Suite)
	priv, err := encoding.ScalarToStringHex(cothority.Suite, kp.Private)
	require.NoError(t, err)
	fname := filepath.Join(dir, "oracle.key")
	require.NoError(t, ioutil.WriteFile(fname, []byte(priv+"\n"), 0600))

	got, err := ReadKeyPair(&fname)
	require.NoError(t, err)
	require.True(t, got.Public.Equal(kp.Public))

	empty := filepath.Join(dir, "empty.key")
	require.NoError(t, ioutil.WriteFile(empty, nil, 0600))
	_, err = ReadKeyPair(&empty)
	require.Error(t, err)
}
