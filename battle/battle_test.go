package battle

import (
	"testing"
	"time"

	"github.com/ceyhunalp/coinflip/utils"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/protobuf"
)

func testLedger(t *testing.T, local *onet.LocalTest) (*byzcoin.Client, *byzcoin.CreateGenesisBlock, darc.Signer) {
	signer := darc.NewSignerEd25519(nil, nil)
	_, roster, _ := local.GenTree(3, true)

	genesisMsg, err := byzcoin.DefaultGenesisMsg(byzcoin.CurrentVersion, roster,
		[]string{
			"spawn:" + ContractBattleID,
			"invoke:" + ContractBattleID + ".join",
			"invoke:" + ContractBattleID + ".record",
			"invoke:" + ContractBattleID + ".settle",
			"invoke:" + ContractBattleID + ".cancel",
			"spawn:" + ContractEventLogID,
		}, signer.Identity())
	require.NoError(t, err)
	genesisMsg.BlockInterval = time.Second

	cl, _, err := byzcoin.NewLedger(genesisMsg, false)
	require.NoError(t, err)
	return cl, genesisMsg, signer
}

func spawnTestEventLog(t *testing.T, cl *byzcoin.Client, gMsg *byzcoin.CreateGenesisBlock, signer darc.Signer, ctr uint64) byzcoin.InstanceID {
	ctx, err := cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(gMsg.GenesisDarc.GetBaseID()),
		Spawn: &byzcoin.Spawn{
			ContractID: ContractEventLogID,
		},
		SignerCounter: []uint64{ctr},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)
	return ctx.Instructions[0].DeriveID("")
}

func signedArg(t *testing.T, kp *key.Pair, payload interface{}) []byte {
	buf, err := signValue(kp, payload)
	require.NoError(t, err)
	return buf
}

func getState(t *testing.T, cl *byzcoin.Client, id byzcoin.InstanceID, out interface{}) bool {
	resp, err := cl.GetProof(id.Slice())
	require.NoError(t, err)
	if !resp.Proof.InclusionProof.Match(id.Slice()) {
		return false
	}
	v, _, _, err := resp.Proof.Get(id.Slice())
	require.NoError(t, err)
	require.NoError(t, protobuf.Decode(v, out))
	return true
}

func TestContract_RoundTrip(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	defer local.CloseAll()
	cl, gMsg, signer := testLedger(t, local)
	eventLogID := spawnTestEventLog(t, cl, gMsg, signer, 1)

	alice := key.NewKeyPair(cothority.Suite)
	bob := key.NewKeyPair(cothority.Suite)
	oracle := key.NewKeyPair(cothority.Suite)
	aliceID, err := PlayerID(alice)
	require.NoError(t, err)
	bobID, err := PlayerID(bob)
	require.NoError(t, err)
	oracleID, err := PlayerID(oracle)
	require.NoError(t, err)

	ctx, err := cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(gMsg.GenesisDarc.GetBaseID()),
		Spawn: &byzcoin.Spawn{
			ContractID: ContractBattleID,
			Args: byzcoin.Arguments{
				{Name: "create", Value: signedArg(t, alice, &CreateData{
					Player:    aliceID,
					Side:      SideHeads,
					Capacity:  2,
					Stake:     MinStake,
					Mode:      ModeLedgerDraw,
					OracleKey: oracleID,
					Now:       utils.UnixMilli(),
				})},
				{Name: "eventlog", Value: eventLogID.Slice()},
			},
		},
		SignerCounter: []uint64{2},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)
	roomID := ctx.Instructions[0].DeriveID("")
	escrowID := ctx.Instructions[0].DeriveID("escrow")

	room := &RoomStorage{}
	require.True(t, getState(t, cl, roomID, room))
	require.Equal(t, aliceID, room.Creator)
	require.False(t, room.Started)
	require.Equal(t, escrowID, room.EscrowID)

	escrow := &EscrowStorage{}
	require.True(t, getState(t, cl, escrowID, escrow))
	require.Equal(t, MinStake, escrow.Balance)

	ctx, err = cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: roomID,
		Invoke: &byzcoin.Invoke{
			ContractID: ContractBattleID,
			Command:    "join",
			Args: byzcoin.Arguments{
				{Name: "join", Value: signedArg(t, bob, &JoinData{
					Player: bobID,
					Side:   SideTails,
					Stake:  MinStake,
					Now:    utils.UnixMilli(),
				})},
			},
		},
		SignerCounter: []uint64{3},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)

	require.True(t, getState(t, cl, roomID, room))
	require.True(t, room.Started)
	require.Contains(t, []int{SideHeads, SideTails}, room.Outcome)
	require.Len(t, room.Winners, 1)
	require.Equal(t, room.FillTime+LockDuration, room.UnlockTime)
	require.True(t, getState(t, cl, escrowID, escrow))
	require.Equal(t, 2*MinStake, escrow.Balance)

	ctx, err = cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: roomID,
		Invoke: &byzcoin.Invoke{
			ContractID: ContractBattleID,
			Command:    "record",
			Args: byzcoin.Arguments{
				{Name: "record", Value: signedArg(t, oracle, &RecordData{
					Pointer: "deadbeef",
					Now:     utils.UnixMilli(),
				})},
			},
		},
		SignerCounter: []uint64{4},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)

	require.True(t, getState(t, cl, roomID, room))
	require.Equal(t, "deadbeef", room.ResultPtr)

	winner := alice
	if room.Winners[0] == bobID {
		winner = bob
	}
	// The claim timestamp is taken at the unlock time, so the contract
	// accepts it without waiting out the lock in real time.
	ctx, err = cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: roomID,
		Invoke: &byzcoin.Invoke{
			ContractID: ContractBattleID,
			Command:    "settle",
			Args: byzcoin.Arguments{
				{Name: "settle", Value: signedArg(t, winner, &SettleData{
					Player: room.Winners[0],
					Now:    room.UnlockTime,
				})},
			},
		},
		SignerCounter: []uint64{5},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)

	// Terminal claim: room and escrow are gone.
	require.False(t, getState(t, cl, roomID, room))
	require.False(t, getState(t, cl, escrowID, escrow))

	elog := &EventLog{}
	require.True(t, getState(t, cl, eventLogID, elog))
	require.Len(t, elog.Events, 5)
	types := make([]int, len(elog.Events))
	for i, ev := range elog.Events {
		require.Equal(t, uint64(i+1), ev.Seq)
		types[i] = ev.Type
	}
	require.Equal(t, []int{EventCreated, EventJoined, EventFull,
		EventResultPublished, EventClaimed}, types)
}

func TestContract_Cancel(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	defer local.CloseAll()
	cl, gMsg, signer := testLedger(t, local)
	eventLogID := spawnTestEventLog(t, cl, gMsg, signer, 1)

	alice := key.NewKeyPair(cothority.Suite)
	aliceID, err := PlayerID(alice)
	require.NoError(t, err)

	ctx, err := cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(gMsg.GenesisDarc.GetBaseID()),
		Spawn: &byzcoin.Spawn{
			ContractID: ContractBattleID,
			Args: byzcoin.Arguments{
				{Name: "create", Value: signedArg(t, alice, &CreateData{
					Player:    aliceID,
					Side:      SideHeads,
					Capacity:  3,
					Stake:     MinStake,
					Mode:      ModeRelayPick,
					OracleKey: aliceID,
					Now:       utils.UnixMilli(),
				})},
				{Name: "eventlog", Value: eventLogID.Slice()},
			},
		},
		SignerCounter: []uint64{2},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)
	roomID := ctx.Instructions[0].DeriveID("")
	escrowID := ctx.Instructions[0].DeriveID("escrow")

	ctx, err = cl.CreateTransaction(byzcoin.Instruction{
		InstanceID: roomID,
		Invoke: &byzcoin.Invoke{
			ContractID: ContractBattleID,
			Command:    "cancel",
			Args: byzcoin.Arguments{
				{Name: "cancel", Value: signedArg(t, alice, &CancelData{
					Player: aliceID,
					Now:    utils.UnixMilli(),
				})},
			},
		},
		SignerCounter: []uint64{3},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.FillSignersAndSignWith(signer))
	_, err = cl.AddTransactionAndWait(ctx, 10)
	require.NoError(t, err)

	room := &RoomStorage{}
	require.False(t, getState(t, cl, roomID, room))
	escrow := &EscrowStorage{}
	require.False(t, getState(t, cl, escrowID, escrow))

	elog := &EventLog{}
	require.True(t, getState(t, cl, eventLogID, elog))
	last := elog.Events[len(elog.Events)-1]
	require.Equal(t, EventCancelled, last.Type)
	require.Equal(t, []string{aliceID}, last.Members)
	require.Equal(t, MinStake, last.Stake)
}
