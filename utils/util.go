package utils

import (
	"bufio"
	"fmt"
	"os"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/skipchain"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ReadKeyPair reads a hex-encoded private scalar from the first line of the
// given file and rebuilds the full keypair. The relay daemon uses this so
// its oracle key survives restarts.
func ReadKeyPair(fname *string) (*key.Pair, error) {
	fh, err := os.Open(*fname)
	if err != nil {
		log.Errorf("ReadKeyPair error: %v", err)
		return nil, err
	}
	defer fh.Close()

	fs := bufio.NewScanner(fh)
	if !fs.Scan() {
		return nil, xerrors.New("empty key file")
	}
	private, err := encoding.StringHexToScalar(cothority.Suite, fs.Text())
	if err != nil {
		log.Errorf("ReadKeyPair error: %v", err)
		return nil, err
	}
	return &key.Pair{
		Private: private,
		Public:  cothority.Suite.Point().Mul(private, nil),
	}, nil
}

func ReadRoster(path *string) (*onet.Roster, error) {
	file, err := os.Open(*path)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}

	group, err := app.ReadGroupDescToml(file)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}

	if len(group.Roster.List) == 0 {
		fmt.Println("Empty roster")
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	return group.Roster, nil
}

func CreateGenesisBlock(s *skipchain.Service, roster *onet.Roster, mHeight int, bHeight int) (*skipchain.StoreSkipBlockReply, error) {
	genesis := skipchain.NewSkipBlock()
	genesis.Roster = roster
	genesis.MaximumHeight = mHeight
	genesis.BaseHeight = bHeight
	genesis.VerifierIDs = skipchain.VerificationStandard
	reply, err := s.StoreSkipBlock(&skipchain.StoreSkipBlock{
		NewBlock: genesis,
	})
	return reply, err
}

func StoreBlock(s *skipchain.Service, genesis skipchain.SkipBlockID, data []byte) error {
	db := s.GetDB()
	latest, err := db.GetLatest(db.GetByID(genesis))
	if err != nil {
		return err
	}
	block := latest.Copy()
	block.Data = data
	block.GenesisID = block.SkipChainID()
	block.Index++
	_, err = s.StoreSkipBlock(&skipchain.StoreSkipBlock{
		NewBlock:          block,
		TargetSkipChainID: latest.SkipChainID(),
	})
	return err
}
