package timelock

import (
	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// The release authority. It holds the keypair that sealed blobs are
// encrypted towards and refuses to release a seed before the unlock time
// encoded in the blob's identity, measured by its own clock.

var ServiceName = "TimelockService"
var timelockID onet.ServiceID

type Service struct {
	*onet.ServiceProcessor
	keypair *key.Pair
}

func init() {
	var err error
	timelockID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessages(&PublicKeyRequest{}, &PublicKeyReply{},
		&ReleaseRequest{}, &ReleaseReply{})
}

func (s *Service) PublicKey(req *PublicKeyRequest) (*PublicKeyReply, error) {
	return &PublicKeyReply{Public: s.keypair.Public}, nil
}

// Release checks the requester's session credential and the release gate,
// then unblinds and returns the seed.
func (s *Service) Release(req *ReleaseRequest) (*ReleaseReply, error) {
	err := utils.VerifyBytes(req.Requester, req.Blob.Identity, req.Sig)
	if err != nil {
		log.Errorf("Cannot verify session signature: %v", err)
		return nil, xerrors.New("invalid session signature")
	}
	err = VerifyRelease(req.Blob.Identity, utils.UnixMilli())
	if err != nil {
		return nil, err
	}
	seed, err := RecoverSeed(s.keypair.Private, &req.Blob)
	if err != nil {
		log.Errorf("Seed recovery failed: %v", err)
		return nil, err
	}
	return &ReleaseReply{Seed: seed}, nil
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		keypair:          key.NewKeyPair(cothority.Suite),
	}
	err := s.RegisterHandlers(s.PublicKey, s.Release)
	if err != nil {
		return nil, xerrors.Errorf("could not register handlers: %v", err)
	}
	return s, nil
}
