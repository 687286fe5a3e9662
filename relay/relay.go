package relay

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ceyhunalp/coinflip/battle"
	"github.com/ceyhunalp/coinflip/utils"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// The relay watches the event log for filled rooms, seals the result under
// the room's unlock time, publishes the ciphertext and records the pointer
// back on the ledger. Transient failures are logged and retried on the next
// cycle; the loop itself never dies.

const DefaultInterval = 2 * time.Second

type Ledger interface {
	PollEvents(afterSeq uint64) ([]battle.Event, error)
	GetRoom(id byzcoin.InstanceID) (*battle.RoomStorage, error)
	RecordResult(id byzcoin.InstanceID, pointer string, outcome int, winner string) error
}

type Sealer interface {
	Seal(data []byte, label []byte, unlockTime int64) ([]byte, error)
}

type Publisher interface {
	Publish(data []byte) (string, error)
}

// ResultPayload is the plaintext sealed for each filled room.
type ResultPayload struct {
	Outcome   int
	Winner    string
	Members   []string
	Timestamp int64
}

type Service struct {
	ledger    Ledger
	sealer    Sealer
	publisher Publisher
	interval  time.Duration

	mu         sync.Mutex
	cursor     uint64
	pending    map[string]byzcoin.InstanceID
	processed  map[string]bool
	submitting bool
	started    bool
	stopped    bool
	done       chan struct{}
}

func New(ledger Ledger, sealer Sealer, publisher Publisher, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		ledger:    ledger,
		sealer:    sealer,
		publisher: publisher,
		interval:  interval,
		pending:   make(map[string]byzcoin.InstanceID),
		processed: make(map[string]bool),
		done:      make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.loop()
}

// Stop flips the shared flag and waits for the loop to finish its current
// cycle. A cycle is never interrupted halfway. Stopping a relay that was
// never started returns immediately.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.done
}

func (s *Service) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		s.Cycle()
		<-ticker.C
	}
}

// Cycle runs one poll-and-process round. Exported so tests can drive the
// relay without the timer.
func (s *Service) Cycle() {
	evs, err := s.ledger.PollEvents(s.cursor)
	if err != nil {
		log.Errorf("relay: polling events failed: %v", err)
		return
	}
	for _, ev := range evs {
		if ev.Seq > s.cursor {
			s.cursor = ev.Seq
		}
		if ev.Type != battle.EventFull {
			continue
		}
		key := hex.EncodeToString(ev.RoomID.Slice())
		if s.processed[key] {
			continue
		}
		s.pending[key] = ev.RoomID
	}
	for key, id := range s.pending {
		err := s.handleRoom(id)
		if err != nil {
			log.Errorf("relay: room %s kept for retry: %v", key, err)
			continue
		}
		s.processed[key] = true
		delete(s.pending, key)
	}
}

func (s *Service) handleRoom(id byzcoin.InstanceID) error {
	room, err := s.ledger.GetRoom(id)
	if err != nil {
		return xerrors.Errorf("couldn't fetch room: %v", err)
	}
	if room.ResultPtr != "" {
		// Result already on the ledger, nothing left to do.
		return nil
	}
	outcome := room.Outcome
	winner := ""
	if room.Mode == battle.ModeRelayPick {
		idx, err := pickIndex(len(room.Members))
		if err != nil {
			return xerrors.Errorf("couldn't pick a winner: %v", err)
		}
		winner = room.Members[idx]
		outcome = room.Choices[idx]
	}
	buf, err := protobuf.Encode(&ResultPayload{
		Outcome:   outcome,
		Winner:    winner,
		Members:   room.Members,
		Timestamp: utils.UnixMilli(),
	})
	if err != nil {
		return xerrors.Errorf("couldn't encode payload: %v", err)
	}
	ct, err := s.sealer.Seal(buf, id.Slice(), room.UnlockTime)
	if err != nil {
		return xerrors.Errorf("couldn't seal payload: %v", err)
	}
	ptr, err := s.publisher.Publish(ct)
	if err != nil {
		return xerrors.Errorf("couldn't publish payload: %v", err)
	}

	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return xerrors.New("a submission is already in flight")
	}
	s.submitting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()
	err = s.ledger.RecordResult(id, ptr, outcome, winner)
	if err != nil {
		return xerrors.Errorf("couldn't record result: %v", err)
	}
	return nil
}

// pickIndex draws a uniform member index for relay-pick rooms.
func pickIndex(n int) (int, error) {
	b := make([]byte, 8)
	_, err := rand.Read(b)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint64(b) % uint64(n)), nil
}
