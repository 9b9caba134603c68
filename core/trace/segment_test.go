package trace

import (
	"errors"
	"testing"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rootAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	calleeA   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	libraryB  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	testTxHex = common.HexToHash("0xfeed")
)

// callStack builds the stack of a CALL-family step: gas, addr, value on top.
func callStack(addr common.Address, value uint64) []uint256.Int {
	stack := make([]uint256.Int, 5) // ret/args offsets and sizes
	stack = append(stack, *uint256.NewInt(value))
	stack = append(stack, *new(uint256.Int).SetBytes(addr.Bytes()))
	stack = append(stack, *uint256.NewInt(100000))
	return stack
}

func nestedTrace() []Step {
	steps := []Step{
		{PC: 0, Op: cfg.PUSH1, Depth: 1},
		{PC: 2, Op: cfg.CALL, Depth: 1, Stack: callStack(calleeA, 5)},
		{PC: 0, Op: cfg.PUSH1, Depth: 2},
		{PC: 2, Op: cfg.DELEGATECALL, Depth: 2, Stack: callStack(libraryB, 0)[1:]},
		{PC: 0, Op: cfg.SSTORE, Depth: 3, Stack: []uint256.Int{*uint256.NewInt(1), *uint256.NewInt(7)}},
		{PC: 1, Op: cfg.STOP, Depth: 3},
		{PC: 3, Op: cfg.STOP, Depth: 2},
		{PC: 3, Op: cfg.STATICCALL, Depth: 1, Stack: callStack(calleeA, 0)[1:]},
		{PC: 0, Op: cfg.STOP, Depth: 2},
		{PC: 4, Op: cfg.STOP, Depth: 1},
	}
	for i := range steps {
		steps[i].Index = i
	}
	return steps
}

func TestAttribute(t *testing.T) {
	steps := nestedTrace()
	require.NoError(t, Attribute(rootAddr, steps))

	want := []struct{ code, storage common.Address }{
		{rootAddr, rootAddr},
		{rootAddr, rootAddr},
		{calleeA, calleeA},
		{calleeA, calleeA},
		{libraryB, calleeA}, // delegatecall keeps the caller's storage
		{libraryB, calleeA},
		{calleeA, calleeA},
		{rootAddr, rootAddr},
		{calleeA, calleeA},
		{rootAddr, rootAddr},
	}
	for i, w := range want {
		assert.Equal(t, w.code, steps[i].Address, "step %d code", i)
		assert.Equal(t, w.storage, steps[i].Storage, "step %d storage", i)
	}
}

func TestSplit(t *testing.T) {
	segs, err := Split(testTxHex, rootAddr, nestedTrace())
	require.NoError(t, err)
	require.Len(t, segs, 4)

	indices := func(s *Segment) []int {
		var out []int
		for _, st := range s.Steps {
			out = append(out, st.Index)
		}
		return out
	}
	assert.Equal(t, []int{0, 1, 7, 9}, indices(segs[0]))
	assert.Equal(t, []int{2, 3, 6}, indices(segs[1]))
	assert.Equal(t, []int{4, 5}, indices(segs[2]))
	assert.Equal(t, []int{8}, indices(segs[3]))

	assert.Equal(t, rootAddr, segs[0].Address)
	assert.Equal(t, libraryB, segs[2].Address)
	assert.Equal(t, calleeA, segs[2].Storage)
	assert.Equal(t, 3, segs[2].Depth)
	for i, s := range segs {
		assert.Equal(t, i, s.Frame)
		assert.Equal(t, testTxHex, s.TxHash)
	}

	tr := segs[1].Trace()
	require.Len(t, tr, 3)
	assert.Equal(t, cfg.TraceStep{Index: 6, PC: 3, Op: cfg.STOP}, tr[2])
}

func TestSplitCreateFrame(t *testing.T) {
	steps := []Step{
		{Index: 0, PC: 0, Op: cfg.CREATE2, Depth: 1},
		{Index: 1, PC: 0, Op: cfg.STOP, Depth: 2},
		{Index: 2, PC: 1, Op: cfg.STOP, Depth: 1},
	}
	segs, err := Split(testTxHex, rootAddr, steps)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.True(t, segs[1].Create)
	assert.Equal(t, common.Address{}, segs[1].Address)
	assert.False(t, segs[0].Create)
}

func TestSplitEmpty(t *testing.T) {
	segs, err := Split(testTxHex, rootAddr, nil)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestSplitMalformedDepth(t *testing.T) {
	for name, steps := range map[string][]Step{
		"skips a level": {
			{Index: 0, Op: cfg.CALL, Depth: 1},
			{Index: 1, Op: cfg.STOP, Depth: 3},
		},
		"below root": {
			{Index: 0, Op: cfg.PUSH1, Depth: 2},
			{Index: 1, Op: cfg.STOP, Depth: 1},
		},
	} {
		_, err := Split(testTxHex, rootAddr, steps)
		assert.True(t, errors.Is(err, ErrMalformedTrace), name)
	}
}

func TestStepAccessors(t *testing.T) {
	call := Step{Op: cfg.CALL, Stack: callStack(calleeA, 42)}
	addr, ok := call.CallTarget()
	require.True(t, ok)
	assert.Equal(t, calleeA, addr)
	v, ok := call.CallValue()
	require.True(t, ok)
	assert.Equal(t, uint64(42), v.Uint64())

	static := Step{Op: cfg.STATICCALL, Stack: callStack(calleeA, 0)[1:]}
	_, ok = static.CallValue()
	assert.False(t, ok)

	store := Step{Op: cfg.SSTORE, Stack: []uint256.Int{*uint256.NewInt(9), *uint256.NewInt(3)}}
	slot, ok := store.StorageSlot()
	require.True(t, ok)
	assert.Equal(t, common.BigToHash(common.Big3), slot)
	val, ok := store.StoredValue()
	require.True(t, ok)
	assert.Equal(t, uint64(9), val.Uint64())

	assert.Nil(t, (&Step{}).StackBack(0))
}

func TestSplitCreation(t *testing.T) {
	steps := []Step{
		{Index: 0, PC: 0, Op: cfg.CALL, Depth: 1, Stack: callStack(calleeA, 0)},
		{Index: 1, PC: 0, Op: cfg.STOP, Depth: 2},
		{Index: 2, PC: 1, Op: cfg.RETURN, Depth: 1},
	}
	segs, err := SplitCreation(testTxHex, steps)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.True(t, segs[0].Create)
	assert.False(t, segs[1].Create)
	assert.Equal(t, calleeA, segs[1].Address)
}
