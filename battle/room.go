package battle

// Room state machine. These methods carry the full precondition checks of
// every operation and mutate the storage struct only when all checks pass,
// so a failed call leaves the room untouched.

func validSide(side int) bool {
	return side == SideHeads || side == SideTails
}

func validMode(mode int) bool {
	return mode == ModeLedgerDraw || mode == ModeRelayPick
}

// NewRoom validates the creation parameters and returns a waiting room with
// the creator as its sole member.
func NewRoom(creator string, side int, capacity int, stake uint64, mode int, oracleKey string, now int64) (*RoomStorage, error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, ErrInvalidCapacity
	}
	if stake < MinStake {
		return nil, ErrBelowMinimumStake
	}
	if !validSide(side) {
		return nil, ErrInvalidSide
	}
	if !validMode(mode) {
		return nil, ErrInvalidMode
	}
	return &RoomStorage{
		Creator:    creator,
		OracleKey:  oracleKey,
		Capacity:   capacity,
		Members:    []string{creator},
		Choices:    []int{side},
		Stake:      stake,
		TotalStake: stake,
		CreateTime: now,
		Mode:       mode,
	}, nil
}

func (r *RoomStorage) IsMember(player string) bool {
	for _, m := range r.Members {
		if m == player {
			return true
		}
	}
	return false
}

// Join adds a player to a waiting room. It reports whether the join filled
// the room; the caller is then expected to call Fill in the same operation.
func (r *RoomStorage) Join(player string, side int, stake uint64, now int64) (bool, error) {
	if r.Started {
		return false, ErrRoomAlreadyStarted
	}
	if len(r.Members) >= r.Capacity {
		return false, ErrRoomFull
	}
	if r.IsMember(player) {
		return false, ErrAlreadyJoined
	}
	if stake != r.Stake {
		return false, ErrWrongStakeAmount
	}
	if !validSide(side) {
		return false, ErrInvalidSide
	}
	if now < r.CreateTime {
		return false, ErrBadTimestamp
	}
	r.Members = append(r.Members, player)
	r.Choices = append(r.Choices, side)
	r.TotalStake += stake
	return len(r.Members) == r.Capacity, nil
}

// Fill transitions a full room to the started state. The unlock time is
// fixed to the fill time plus the lock duration. In ledger-draw mode the
// outcome is drawn from the given digest over the sides that members
// actually chose, so the winner set is never empty.
func (r *RoomStorage) Fill(now int64, digest []byte) {
	r.Started = true
	r.FillTime = now
	r.UnlockTime = now + LockDuration
	if r.Mode == ModeLedgerDraw {
		r.Outcome = r.drawOutcome(digest)
		r.Winners = r.winnersOf(r.Outcome)
	}
}

// drawOutcome maps the digest to one of the sides represented among the
// members' choices.
func (r *RoomStorage) drawOutcome(digest []byte) int {
	var sides []int
	seen := make(map[int]bool)
	for _, c := range r.Choices {
		if !seen[c] {
			seen[c] = true
			sides = append(sides, c)
		}
	}
	return sides[int(digest[0])%len(sides)]
}

func (r *RoomStorage) winnersOf(outcome int) []string {
	var winners []string
	for i, c := range r.Choices {
		if c == outcome {
			winners = append(winners, r.Members[i])
		}
	}
	return winners
}

// Record stores the result pointer, and in relay-pick mode the winner,
// exactly once.
func (r *RoomStorage) Record(pointer string, outcome int, winner string, now int64) error {
	if !r.Started {
		return ErrRoomNotStarted
	}
	if r.ResultPtr != "" {
		return ErrResultAlreadySet
	}
	if pointer == "" {
		return ErrEmptyPointer
	}
	if now < r.FillTime {
		return ErrBadTimestamp
	}
	if r.Mode == ModeRelayPick {
		idx := -1
		for i, m := range r.Members {
			if m == winner {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrInvalidWinner
		}
		if !validSide(outcome) {
			return ErrInvalidSide
		}
		// The winner must have called the recorded outcome.
		if r.Choices[idx] != outcome {
			return ErrInvalidWinner
		}
		r.Outcome = outcome
		r.Winners = []string{winner}
	}
	r.ResultPtr = pointer
	return nil
}

func (r *RoomStorage) isWinner(player string) bool {
	for _, w := range r.Winners {
		if w == player {
			return true
		}
	}
	return false
}

func (r *RoomStorage) hasClaimed(player string) bool {
	for _, c := range r.Claimed {
		if c == player {
			return true
		}
	}
	return false
}

// Settle pays out one winner's share. Every winner claims independently;
// the reward is the integer share of the pot. The last claim reports the
// residual dust, which goes to the creator, and marks the room settled so
// the caller can remove the room and its escrow.
func (r *RoomStorage) Settle(player string, now int64) (amount uint64, residue uint64, done bool, err error) {
	if !r.Started {
		return 0, 0, false, ErrRoomNotStarted
	}
	if r.Outcome == 0 {
		return 0, 0, false, ErrOutcomeNotSet
	}
	if now < r.UnlockTime {
		return 0, 0, false, ErrTooEarly
	}
	if !r.isWinner(player) {
		return 0, 0, false, ErrNotAWinner
	}
	if r.hasClaimed(player) {
		return 0, 0, false, ErrAlreadySettled
	}
	amount = r.TotalStake / uint64(len(r.Winners))
	r.Claimed = append(r.Claimed, player)
	done = len(r.Claimed) == len(r.Winners)
	if done {
		residue = r.TotalStake - amount*uint64(len(r.Winners))
		r.Settled = true
	}
	return amount, residue, done, nil
}

// Cancel checks that the creator aborts a room that has not started. The
// per-member refund equals the room stake.
func (r *RoomStorage) Cancel(player string) error {
	if player != r.Creator {
		return ErrNotCreator
	}
	if r.Started {
		return ErrRoomAlreadyStarted
	}
	return nil
}
