package timelock

import (
	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"golang.org/x/xerrors"
)

type Client struct {
	*onet.Client
	roster *onet.Roster
}

func NewClient(r *onet.Roster) *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName), roster: r}
}

func (c *Client) PublicKey() (kyber.Point, error) {
	if len(c.roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	reply := &PublicKeyReply{}
	err := c.SendProtobuf(c.roster.List[0], &PublicKeyRequest{}, reply)
	if err != nil {
		return nil, err
	}
	return reply.Public, nil
}

// Release asks the authority for the seed of a sealed blob. The request is
// signed with the requester's key as a session credential.
func (c *Client) Release(kp *key.Pair, blob *SealedBlob) ([]byte, error) {
	if len(c.roster.List) == 0 {
		return nil, xerrors.New("got an empty roster list")
	}
	requester, err := utils.PointToHex(kp.Public)
	if err != nil {
		return nil, err
	}
	sig, err := utils.SignBytes(kp.Private, blob.Identity)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign release request: %v", err)
	}
	reply := &ReleaseReply{}
	err = c.SendProtobuf(c.roster.List[0], &ReleaseRequest{
		Blob:      *blob,
		Requester: requester,
		Sig:       sig,
	}, reply)
	if err != nil {
		return nil, err
	}
	return reply.Seed, nil
}
