package cfg

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExecuted(t *testing.T, static *CFG, tx common.Hash, pcs ...uint64) *CFG {
	t.Helper()
	g, err := BuildExecuted(static, tx, stepsAt(t, static.BlockSet(), pcs...))
	require.NoError(t, err)
	return g
}

func TestMergeSumsWeights(t *testing.T) {
	static := BuildStatic(mustBlockSet(t, "6003565b00"))
	// Two transactions take 0->3 once; a third enters the contract twice.
	runs := []*CFG{
		mustExecuted(t, static, common.HexToHash("0x01"), 0, 2, 3, 4),
		mustExecuted(t, static, common.HexToHash("0x02"), 0, 2, 3, 4),
		mustExecuted(t, static, common.HexToHash("0x03"), 0, 2, 3, 4),
		mustExecuted(t, static, common.HexToHash("0x03"), 0, 2, 3, 4),
	}
	agg, err := Merge(runs...)
	require.NoError(t, err)

	assert.Equal(t, KindAggregated, agg.Kind())
	assert.Equal(t, []Edge{{From: 0, To: 1, Kind: EdgeStaticJump, Weight: 4}}, agg.Edges())
	assert.Equal(t, uint64(4), agg.Visits(1))
	assert.Equal(t, uint64(8), agg.Gas(0))
	assert.Equal(t, map[int]uint64{0: 4}, agg.EntryCounts())

	// Inputs are untouched.
	assert.Equal(t, uint64(1), runs[0].TotalWeight())
}

func TestMergeLowestEntry(t *testing.T) {
	static := BuildStatic(mustBlockSet(t, "6003565b00"))
	late := mustExecuted(t, static, common.HexToHash("0x01"), 3, 4)
	early := mustExecuted(t, static, common.HexToHash("0x02"), 0, 2, 3, 4)

	a, err := Merge(late, early)
	require.NoError(t, err)
	b, err := Merge(early, late)
	require.NoError(t, err)
	assert.Equal(t, 0, a.EntryID())
	assert.True(t, a.Equal(b))
	assert.Equal(t, map[int]uint64{0: 1, 1: 1}, a.EntryCounts())
}

func TestMergeErrors(t *testing.T) {
	_, err := Merge()
	assert.True(t, errors.Is(err, ErrNoCFG))

	a := BuildStatic(mustBlockSet(t, "6003565b00"))
	b := BuildStatic(mustBlockSet(t, "00"))
	_, err = Merge(a, b)
	assert.True(t, errors.Is(err, ErrCodeHashMismatch))
}

func TestMergeAllGroupsByCode(t *testing.T) {
	s1 := BuildStatic(mustBlockSet(t, "6003565b00"))
	s2 := BuildStatic(mustBlockSet(t, "600457005b00"))
	out := MergeAll([]*CFG{
		mustExecuted(t, s1, common.HexToHash("0x01"), 0, 2, 3, 4),
		nil,
		mustExecuted(t, s2, common.HexToHash("0x01"), 0, 2, 3),
		mustExecuted(t, s1, common.HexToHash("0x02"), 0, 2, 3, 4),
	})
	require.Len(t, out, 2)
	assert.Equal(t, uint64(2), out[s1.CodeHash()].TotalWeight())
	assert.Equal(t, uint64(1), out[s2.CodeHash()].TotalWeight())
}

// Any order and any grouping of partial merges gives the same graph.
func TestMergeCommutativeAssociative(t *testing.T) {
	// 0: CALLDATASIZE, 1: PUSH1 0x08, 3: JUMPI, 4: PUSH1 0x0b, 6: JUMP,
	// 7: STOP, 8: JUMPDEST, 9: CALLVALUE, 10: STOP, 11: JUMPDEST, 12: STOP
	static := BuildStatic(mustBlockSet(t, "36600857600b56005b34005b00"))
	var (
		taken    = []uint64{0, 1, 3, 8, 9, 10}
		notTaken = []uint64{0, 1, 3, 4, 6, 11, 12}
		inner    = []uint64{11, 12}
	)
	var runs []*CFG
	for _, pcs := range [][]uint64{taken, notTaken, taken, notTaken, notTaken, inner} {
		runs = append(runs, mustExecuted(t, static, testTx, pcs...))
	}
	want, err := Merge(runs...)
	require.NoError(t, err)
	require.Equal(t, []Edge{
		{From: 0, To: 1, Kind: EdgeFallthrough, Weight: 3},
		{From: 0, To: 3, Kind: EdgeStaticJump, Weight: 2},
		{From: 1, To: 4, Kind: EdgeStaticJump, Weight: 3},
	}, want.Edges())

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]*CFG(nil), runs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		flat, err := Merge(shuffled...)
		require.NoError(t, err)
		require.True(t, want.Equal(flat))
		require.Equal(t, want.Edges(), flat.Edges())

		// Merge a random split, then merge the partial aggregates.
		cut := 1 + rng.Intn(len(shuffled)-1)
		left, err := Merge(shuffled[:cut]...)
		require.NoError(t, err)
		right, err := Merge(shuffled[cut:]...)
		require.NoError(t, err)
		nested, err := Merge(right, left)
		require.NoError(t, err)
		require.True(t, want.Equal(nested))
		require.Equal(t, want.EntryCounts(), nested.EntryCounts())

		parallel, err := MergeParallel(shuffled)
		require.NoError(t, err)
		require.True(t, want.Equal(parallel))
	}
}

func TestMergeParallelSingle(t *testing.T) {
	static := BuildStatic(mustBlockSet(t, "6003565b00"))
	run := mustExecuted(t, static, common.HexToHash("0x01"), 0, 2, 3, 4)
	agg, err := MergeParallel([]*CFG{run})
	require.NoError(t, err)
	assert.Equal(t, KindAggregated, agg.Kind())
	assert.True(t, agg.Equal(run))

	_, err = MergeParallel(nil)
	assert.True(t, errors.Is(err, ErrNoCFG))
}

func TestMergeParallelMismatch(t *testing.T) {
	static := BuildStatic(mustBlockSet(t, "6003565b00"))
	other := BuildStatic(mustBlockSet(t, "600456005b00"))
	runs := []*CFG{
		mustExecuted(t, static, common.HexToHash("0x01"), 0, 2, 3, 4),
		mustExecuted(t, static, common.HexToHash("0x02"), 0, 2, 3, 4),
		mustExecuted(t, other, common.HexToHash("0x03"), 0, 2, 4, 5),
	}
	_, err := MergeParallel(runs)
	assert.True(t, errors.Is(err, ErrCodeHashMismatch))
}
