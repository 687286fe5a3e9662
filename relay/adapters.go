package relay

import (
	"github.com/ceyhunalp/coinflip/battle"
	"github.com/ceyhunalp/coinflip/blobstore"
	"github.com/ceyhunalp/coinflip/timelock"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/protobuf"
)

// BattleLedger adapts the battle client to the Ledger interface. The relay
// holds the oracle keypair that rooms name as their oracle, so its record
// callbacks pass the in-contract signature check.
type BattleLedger struct {
	cl     *battle.Client
	oracle *key.Pair
	wait   int
}

func NewBattleLedger(cl *battle.Client, oracle *key.Pair, wait int) *BattleLedger {
	return &BattleLedger{cl: cl, oracle: oracle, wait: wait}
}

func (b *BattleLedger) PollEvents(afterSeq uint64) ([]battle.Event, error) {
	return b.cl.PollEvents(afterSeq)
}

func (b *BattleLedger) GetRoom(id byzcoin.InstanceID) (*battle.RoomStorage, error) {
	return b.cl.GetRoom(id)
}

func (b *BattleLedger) RecordResult(id byzcoin.InstanceID, pointer string, outcome int, winner string) error {
	return b.cl.RecordResult(b.oracle, id, pointer, outcome, winner, b.wait)
}

// TimelockSealer seals payloads towards the release authority's public key.
type TimelockSealer struct {
	X kyber.Point
}

func (t *TimelockSealer) Seal(data []byte, label []byte, unlockTime int64) ([]byte, error) {
	blob, err := timelock.Seal(t.X, data, label, unlockTime)
	if err != nil {
		return nil, err
	}
	return protobuf.Encode(blob)
}

// BlobPublisher publishes ciphertexts to the content-addressed store.
type BlobPublisher struct {
	st *blobstore.Store
}

func NewBlobPublisher(st *blobstore.Store) *BlobPublisher {
	return &BlobPublisher{st: st}
}

func (p *BlobPublisher) Publish(data []byte) (string, error) {
	return p.st.Publish(data)
}
