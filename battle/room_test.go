package battle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testStake = MinStake

func testRoom(t *testing.T, capacity int, mode int) *RoomStorage {
	room, err := NewRoom("p0", SideHeads, capacity, testStake, mode, "oracle", 1000)
	require.NoError(t, err)
	return room
}

func TestNewRoom_Validation(t *testing.T) {
	_, err := NewRoom("p0", SideHeads, 1, testStake, ModeLedgerDraw, "oracle", 0)
	require.Equal(t, ErrInvalidCapacity, err)
	_, err = NewRoom("p0", SideHeads, 11, testStake, ModeLedgerDraw, "oracle", 0)
	require.Equal(t, ErrInvalidCapacity, err)
	_, err = NewRoom("p0", SideHeads, 2, testStake-1, ModeLedgerDraw, "oracle", 0)
	require.Equal(t, ErrBelowMinimumStake, err)
	_, err = NewRoom("p0", 3, 2, testStake, ModeLedgerDraw, "oracle", 0)
	require.Equal(t, ErrInvalidSide, err)
	_, err = NewRoom("p0", SideTails, 2, testStake, 7, "oracle", 0)
	require.Equal(t, ErrInvalidMode, err)

	room, err := NewRoom("p0", SideTails, 2, testStake, ModeRelayPick, "oracle", 42)
	require.NoError(t, err)
	require.Equal(t, []string{"p0"}, room.Members)
	require.Equal(t, []int{SideTails}, room.Choices)
	require.Equal(t, testStake, room.TotalStake)
	require.False(t, room.Started)
}

func TestJoin(t *testing.T) {
	room := testRoom(t, 3, ModeLedgerDraw)

	_, err := room.Join("p0", SideTails, testStake, 2000)
	require.Equal(t, ErrAlreadyJoined, err)
	_, err = room.Join("p1", SideTails, testStake+1, 2000)
	require.Equal(t, ErrWrongStakeAmount, err)
	_, err = room.Join("p1", 0, testStake, 2000)
	require.Equal(t, ErrInvalidSide, err)
	_, err = room.Join("p1", SideTails, testStake, 500)
	require.Equal(t, ErrBadTimestamp, err)

	filled, err := room.Join("p1", SideTails, testStake, 2000)
	require.NoError(t, err)
	require.False(t, filled)
	filled, err = room.Join("p2", SideHeads, testStake, 3000)
	require.NoError(t, err)
	require.True(t, filled)
	require.Equal(t, 3*testStake, room.TotalStake)

	room.Fill(3000, []byte{0})
	require.True(t, room.Started)
	require.Equal(t, int64(3000), room.FillTime)
	require.Equal(t, int64(3000+LockDuration), room.UnlockTime)

	_, err = room.Join("p3", SideHeads, testStake, 4000)
	require.Equal(t, ErrRoomAlreadyStarted, err)
}

func TestFill_DrawsFromRepresentedSides(t *testing.T) {
	// Every digest must map to a side someone actually chose.
	for d := byte(0); d < 8; d++ {
		room := testRoom(t, 2, ModeLedgerDraw)
		_, err := room.Join("p1", SideTails, testStake, 2000)
		require.NoError(t, err)
		room.Fill(2000, []byte{d})
		require.Contains(t, []int{SideHeads, SideTails}, room.Outcome)
		require.NotEmpty(t, room.Winners)
		for _, w := range room.Winners {
			for i, m := range room.Members {
				if m == w {
					require.Equal(t, room.Outcome, room.Choices[i])
				}
			}
		}
	}

	// All members on the same side: that side must win.
	room := testRoom(t, 2, ModeLedgerDraw)
	_, err := room.Join("p1", SideHeads, testStake, 2000)
	require.NoError(t, err)
	room.Fill(2000, []byte{1})
	require.Equal(t, SideHeads, room.Outcome)
	require.Equal(t, []string{"p0", "p1"}, room.Winners)
}

func TestRecord(t *testing.T) {
	room := testRoom(t, 2, ModeLedgerDraw)
	err := room.Record("ptr", 0, "", 2000)
	require.Equal(t, ErrRoomNotStarted, err)

	_, err = room.Join("p1", SideTails, testStake, 2000)
	require.NoError(t, err)
	room.Fill(2000, []byte{0})

	err = room.Record("", 0, "", 3000)
	require.Equal(t, ErrEmptyPointer, err)
	err = room.Record("ptr", 0, "", 1000)
	require.Equal(t, ErrBadTimestamp, err)
	err = room.Record("ptr", 0, "", 3000)
	require.NoError(t, err)
	err = room.Record("other", 0, "", 4000)
	require.Equal(t, ErrResultAlreadySet, err)
}

func TestRecord_RelayPick(t *testing.T) {
	room := testRoom(t, 2, ModeRelayPick)
	_, err := room.Join("p1", SideTails, testStake, 2000)
	require.NoError(t, err)
	room.Fill(2000, []byte{0})
	require.Equal(t, 0, room.Outcome)
	require.Empty(t, room.Winners)

	err = room.Record("ptr", SideTails, "stranger", 3000)
	require.Equal(t, ErrInvalidWinner, err)
	err = room.Record("ptr", 9, "p1", 3000)
	require.Equal(t, ErrInvalidSide, err)
	// The winner's own choice must match the recorded outcome.
	err = room.Record("ptr", SideHeads, "p1", 3000)
	require.Equal(t, ErrInvalidWinner, err)
	err = room.Record("ptr", SideTails, "p1", 3000)
	require.NoError(t, err)
	require.Equal(t, SideTails, room.Outcome)
	require.Equal(t, []string{"p1"}, room.Winners)
}

func TestSettle_SplitAndResidue(t *testing.T) {
	// Five members, three on heads. The digest points at the first
	// represented side, which is heads.
	room := testRoom(t, 5, ModeLedgerDraw)
	sides := []int{SideTails, SideHeads, SideTails, SideHeads}
	for i, s := range sides {
		_, err := room.Join("p"+string(rune('1'+i)), s, testStake, 2000)
		require.NoError(t, err)
	}
	room.Fill(2000, []byte{0})
	require.Equal(t, SideHeads, room.Outcome)
	require.Len(t, room.Winners, 3)

	total := room.TotalStake
	share := total / 3
	unlock := room.UnlockTime

	_, _, _, err := room.Settle(room.Winners[0], unlock-1)
	require.Equal(t, ErrTooEarly, err)
	_, _, _, err = room.Settle("p1", unlock)
	require.Equal(t, ErrNotAWinner, err)

	amount, residue, done, err := room.Settle(room.Winners[0], unlock)
	require.NoError(t, err)
	require.Equal(t, share, amount)
	require.Zero(t, residue)
	require.False(t, done)

	_, _, _, err = room.Settle(room.Winners[0], unlock)
	require.Equal(t, ErrAlreadySettled, err)

	_, _, done, err = room.Settle(room.Winners[1], unlock)
	require.NoError(t, err)
	require.False(t, done)

	amount, residue, done, err = room.Settle(room.Winners[2], unlock)
	require.NoError(t, err)
	require.Equal(t, share, amount)
	require.Equal(t, total-3*share, residue)
	require.True(t, done)
	require.True(t, room.Settled)
}

func TestSettle_Preconditions(t *testing.T) {
	room := testRoom(t, 2, ModeRelayPick)
	_, _, _, err := room.Settle("p0", 10000)
	require.Equal(t, ErrRoomNotStarted, err)

	_, err = room.Join("p1", SideTails, testStake, 2000)
	require.NoError(t, err)
	room.Fill(2000, []byte{0})

	_, _, _, err = room.Settle("p0", 10000)
	require.Equal(t, ErrOutcomeNotSet, err)
}

func TestCancel(t *testing.T) {
	room := testRoom(t, 3, ModeLedgerDraw)
	require.Equal(t, ErrNotCreator, room.Cancel("p1"))
	require.NoError(t, room.Cancel("p0"))

	_, err := room.Join("p1", SideTails, testStake, 2000)
	require.NoError(t, err)
	_, err = room.Join("p2", SideTails, testStake, 2000)
	require.NoError(t, err)
	room.Fill(2000, []byte{0})
	require.Equal(t, ErrRoomAlreadyStarted, room.Cancel("p0"))
}
