package annotate

import (
	"strings"
	"testing"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0xa11ce00000000000000000000000000000000000")
	bob     = common.HexToAddress("0xb0b0000000000000000000000000000000000000")
	balSlot = common.BigToHash(common.Big0)
)

func word(v uint64) uint256.Int { return *uint256.NewInt(v) }

func hashWord(h common.Hash) uint256.Int { return *new(uint256.Int).SetBytes(h.Bytes()) }

func addrWord(a common.Address) uint256.Int { return *new(uint256.Int).SetBytes(a.Bytes()) }

func TestTagBlocks(t *testing.T) {
	// Five PUSH1 fill offsets 0..9, then CALL@10, PUSH1, PUSH1, SSTORE@15, STOP.
	code := strings.Repeat("6000", 5) + "f1" + "60006000" + "55" + "00"
	bs, err := cfg.NewBlockSet(common.FromHex(code))
	require.NoError(t, err)
	g := cfg.BuildStatic(bs)

	tags := TagBlocks(g, DefaultMatcher())
	assert.Equal(t, map[int][]Match{
		0: {{Offset: 10, Op: cfg.CALL}, {Offset: 15, Op: cfg.SSTORE}},
	}, tags)

	assert.Empty(t, TagBlocks(g, NewMatcher(cfg.DELEGATECALL)))
}

func TestTagBlocksOnlyVisited(t *testing.T) {
	// 0: PUSH1 6, 2: JUMP, 3: CALL, 4: STOP, 5: STOP, 6: JUMPDEST, 7: SSTORE, 8: STOP
	bs, err := cfg.NewBlockSet(common.FromHex("600656f100005b5500"))
	require.NoError(t, err)
	static := cfg.BuildStatic(bs)
	run, err := cfg.BuildExecuted(static, common.Hash{}, []cfg.TraceStep{
		{Index: 0, PC: 0, Op: cfg.PUSH1},
		{Index: 1, PC: 2, Op: cfg.JUMP},
		{Index: 2, PC: 6, Op: cfg.JUMPDEST},
		{Index: 3, PC: 7, Op: cfg.SSTORE},
		{Index: 4, PC: 8, Op: cfg.STOP},
	})
	require.NoError(t, err)

	assert.Len(t, TagBlocks(static, DefaultMatcher()), 2)
	tags := TagBlocks(run, DefaultMatcher())
	require.Len(t, tags, 1)
	blk, _ := bs.BlockAt(6)
	assert.Equal(t, []Match{{Offset: 7, Op: cfg.SSTORE}}, tags[blk.ID])
}

func TestMatcherFromNames(t *testing.T) {
	m, unknown := MatcherFromNames([]string{"sstore", "CALL", "BOGUS"})
	assert.Equal(t, []string{"BOGUS"}, unknown)
	assert.Equal(t, []string{"SSTORE", "CALL"}, m.Names())
	assert.True(t, m.Match(cfg.CALL))
	assert.False(t, m.Match(cfg.STATICCALL))
}

func attributed(steps []trace.Step) []trace.Step {
	for i := range steps {
		steps[i].Index = i
	}
	return steps
}

func TestFilterTrace(t *testing.T) {
	steps := attributed([]trace.Step{
		{Op: cfg.PUSH1, Depth: 1, Address: token},
		{Op: cfg.SSTORE, Depth: 1, Address: token},
		{Op: cfg.CALL, Depth: 1, Address: token},
		{Op: cfg.SSTORE, Depth: 2, Address: alice},
		{Op: cfg.STATICCALL, Depth: 2, Address: alice},
		{Op: cfg.DELEGATECALL, Depth: 3, Address: token},
		{Op: cfg.SLOAD, Depth: 1, Address: token},
	})

	got := FilterTrace(steps, token, AnyDepth, DefaultMatcher())
	var idx []int
	for _, st := range got {
		idx = append(idx, st.Index)
	}
	assert.Equal(t, []int{1, 2, 5}, idx)

	got = FilterTrace(steps, token, 1, DefaultMatcher())
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Index)

	assert.Empty(t, FilterTrace(steps, bob, AnyDepth, DefaultMatcher()))
}

func TestMappingSlot(t *testing.T) {
	// keccak256(pad32(addr) ++ pad32(0))
	got := MappingSlot(common.HexToAddress("0x0000000000000000000000000000000000000001"), balSlot)
	assert.Equal(t, common.HexToHash("0xada5013122d395ba3c54772283fb069b10426056ef8ca54750cb9bb552a59e7d"), got)

	slots := NewSlots()
	slots.AddMapping(token, balSlot, alice, bob)
	holder, ok := slots.SlotToAddress(token, MappingSlot(bob, balSlot))
	require.True(t, ok)
	assert.Equal(t, bob, holder)
	_, ok = slots.SlotToAddress(alice, MappingSlot(bob, balSlot))
	assert.False(t, ok)
}

func TestActions(t *testing.T) {
	slots := NewSlots()
	slots.AddMapping(token, balSlot, alice)
	aliceSlot := MappingSlot(alice, balSlot)

	steps := attributed([]trace.Step{
		{Op: cfg.CALL, Storage: token, Stack: []uint256.Int{word(0), word(0), word(0), word(0), word(7), addrWord(bob), word(5000)}},
		{Op: cfg.CALL, Storage: token, Stack: []uint256.Int{word(0), word(0), word(0), word(0), word(0), addrWord(bob), word(5000)}},
		{Op: cfg.SSTORE, Storage: token, Stack: []uint256.Int{word(90), hashWord(aliceSlot)}},
		{Op: cfg.SSTORE, Storage: token, Stack: []uint256.Int{word(1), word(3)}},
	})
	transfers, writes := Actions(steps, slots)

	require.Len(t, transfers, 1)
	assert.Equal(t, 0, transfers[0].Index)
	assert.Equal(t, token, transfers[0].From)
	assert.Equal(t, bob, transfers[0].To)
	assert.Equal(t, uint64(7), transfers[0].Value.Uint64())

	require.Len(t, writes, 2)
	assert.True(t, writes[0].HasHolder)
	assert.Equal(t, alice, writes[0].Holder)
	assert.Equal(t, uint64(90), writes[0].Value.Uint64())
	assert.False(t, writes[1].HasHolder)
	assert.Equal(t, common.BigToHash(common.Big3), writes[1].Slot)

	_, writes = Actions(steps, nil)
	assert.False(t, writes[0].HasHolder)
}

func TestBalanceChanges(t *testing.T) {
	slots := NewSlots()
	slots.AddMapping(token, balSlot, alice, bob)
	aliceSlot, bobSlot := MappingSlot(alice, balSlot), MappingSlot(bob, balSlot)

	steps := attributed([]trace.Step{
		{PC: 10, Op: cfg.SLOAD, Storage: token, Stack: []uint256.Int{hashWord(aliceSlot)}},
		{PC: 11, Op: cfg.DUP1, Storage: token, Stack: []uint256.Int{word(100)}},
		{PC: 20, Op: cfg.SSTORE, Storage: token, Stack: []uint256.Int{word(60), hashWord(aliceSlot)}},
		{PC: 30, Op: cfg.SLOAD, Storage: token, Stack: []uint256.Int{hashWord(bobSlot)}},
		{PC: 31, Op: cfg.DUP1, Storage: token, Stack: []uint256.Int{word(5)}},
		{PC: 40, Op: cfg.SSTORE, Storage: token, Stack: []uint256.Int{word(45), hashWord(bobSlot)}},
		// Unpaired write.
		{PC: 50, Op: cfg.SSTORE, Storage: token, Stack: []uint256.Int{word(1), hashWord(bobSlot)}},
	})
	changes := BalanceChanges(steps, slots)
	require.Len(t, changes, 2)

	assert.Equal(t, alice, changes[0].Holder)
	assert.False(t, changes[0].Increased)
	assert.Equal(t, uint64(40), changes[0].Amount.Uint64())
	assert.Equal(t, uint64(10), changes[0].LoadPC)
	assert.Equal(t, uint64(20), changes[0].StorePC)

	assert.Equal(t, bob, changes[1].Holder)
	assert.True(t, changes[1].Increased)
	assert.Equal(t, uint64(40), changes[1].Amount.Uint64())
	assert.Equal(t, uint64(5), changes[1].Before.Uint64())
	assert.Equal(t, uint64(45), changes[1].After.Uint64())

	assert.Nil(t, BalanceChanges(steps, nil))
}
