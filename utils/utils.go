package utils

import (
	"crypto/sha256"
	"time"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

// Utility functions for ElGamalPair

type ElGamalPair struct {
	K kyber.Point // C1
	C kyber.Point // C2
}

// ElGamalEncrypt performs the ElGamal encryption algorithm.
func ElGamalEncrypt(public kyber.Point, message []byte) ElGamalPair {
	if len(message) > cothority.Suite.Point().EmbedLen() {
		panic("message size is too long")
	}
	M := cothority.Suite.Point().Embed(message, random.New())

	// ElGamal-encrypt the point to produce ciphertext (K,C).
	egp := ElGamalPair{}
	k := cothority.Suite.Scalar().Pick(random.New()) // ephemeral private key
	egp.K = cothority.Suite.Point().Mul(k, nil)      // ephemeral DH public key
	S := cothority.Suite.Point().Mul(k, public)      // ephemeral DH shared secret
	egp.C = S.Add(S, M)                              // message blinded with secret
	return egp
}

// ElGamalDecrypt performs the ElGamal decryption algorithm.
func ElGamalDecrypt(private kyber.Scalar, egp ElGamalPair) kyber.Point {
	S := cothority.Suite.Point().Mul(private, egp.K) // regenerate shared secret
	return cothority.Suite.Point().Sub(egp.C, S)     // use to un-blind the message
}

func HashBytes(val []byte) []byte {
	h := sha256.New()
	h.Write(val)
	return h.Sum(nil)
}

// SignBytes produces a schnorr signature over the sha256 digest of data.
func SignBytes(private kyber.Scalar, data []byte) ([]byte, error) {
	return schnorr.Sign(cothority.Suite, private, HashBytes(data))
}

// VerifyBytes checks a signature produced by SignBytes against the
// hex-encoded public key of the signer.
func VerifyBytes(publicHex string, data []byte, sig []byte) error {
	pk, err := encoding.StringHexToPoint(cothority.Suite, publicHex)
	if err != nil {
		return xerrors.Errorf("couldn't decode public key: %v", err)
	}
	return schnorr.Verify(cothority.Suite, pk, HashBytes(data), sig)
}

// PointToHex returns the canonical hex string of a public key point.
func PointToHex(p kyber.Point) (string, error) {
	return encoding.PointToStringHex(cothority.Suite, p)
}

// UnixMilli returns a wall-clock timestamp in milliseconds.
func UnixMilli() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
