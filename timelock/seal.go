package timelock

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"

	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

// The seed must fit into an embeddable curve point.
const seedLen = 24

// SealedBlob is a payload encrypted towards a release authority. The seed
// is ElGamal-embedded to the authority's public key; the payload itself is
// encrypted under a key derived from the release identity and the seed, so
// the seed alone is useless without the identity it was sealed for.
type SealedBlob struct {
	Identity []byte
	K        kyber.Point
	C        kyber.Point
	Nonce    []byte
	Data     []byte
}

func sealKey(identity []byte, seed []byte) []byte {
	h := sha256.New()
	h.Write(identity)
	h.Write(seed)
	return h.Sum(nil)
}

// Seal encrypts data so that it can only be opened once the authority
// holding the private counterpart of X releases the seed, which it refuses
// to do before the unlock time.
func Seal(X kyber.Point, data []byte, label []byte, unlockTime int64) (*SealedBlob, error) {
	identity := ReleaseIdentity(label, unlockTime)
	seed := make([]byte, seedLen)
	random.Bytes(seed, random.New())
	egp := utils.ElGamalEncrypt(X, seed)

	block, err := aes.NewCipher(sealKey(identity, seed))
	if err != nil {
		return nil, xerrors.Errorf("couldn't create cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create GCM: %v", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	random.Bytes(nonce, random.New())
	return &SealedBlob{
		Identity: identity,
		K:        egp.K,
		C:        egp.C,
		Nonce:    nonce,
		Data:     gcm.Seal(nil, nonce, data, identity),
	}, nil
}

// Open decrypts a sealed blob with the released seed.
func Open(blob *SealedBlob, seed []byte) ([]byte, error) {
	block, err := aes.NewCipher(sealKey(blob.Identity, seed))
	if err != nil {
		return nil, xerrors.Errorf("couldn't create cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create GCM: %v", err)
	}
	data, err := gcm.Open(nil, blob.Nonce, blob.Data, blob.Identity)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decrypt blob: %v", err)
	}
	return data, nil
}

// RecoverSeed unblinds the embedded seed with the authority's private key.
func RecoverSeed(private kyber.Scalar, blob *SealedBlob) ([]byte, error) {
	pt := utils.ElGamalDecrypt(private, utils.ElGamalPair{K: blob.K, C: blob.C})
	seed, err := pt.Data()
	if err != nil {
		return nil, xerrors.Errorf("couldn't recover seed: %v", err)
	}
	return seed, nil
}
