package cfg

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBlockSet(t *testing.T, hex string) *BlockSet {
	t.Helper()
	bs, err := NewBlockSet(common.FromHex(hex))
	require.NoError(t, err)
	return bs
}

func TestSegmentStaticJump(t *testing.T) {
	// 0: PUSH1 0x03, 2: JUMP, 3: JUMPDEST, 4: STOP
	bs := mustBlockSet(t, "6003565b00")
	require.Equal(t, 2, bs.Len())

	b0, b1 := bs.Block(0), bs.Block(1)
	assert.Equal(t, uint64(0), b0.Start)
	assert.Equal(t, uint64(3), b0.End)
	assert.Equal(t, TermJump, b0.Terminator)
	target, ok := b0.StaticTarget()
	require.True(t, ok)
	assert.Equal(t, uint64(3), target)

	assert.Equal(t, uint64(3), b1.Start)
	assert.Equal(t, uint64(5), b1.End)
	assert.Equal(t, TermHalt, b1.Terminator)
	assert.True(t, b1.IsJumpDest())
	assert.Len(t, b1.Instructions, 2)
}

func TestSegmentJumpDestInPushData(t *testing.T) {
	// 0: PUSH1 0x5b, 2: JUMPDEST, 3: STOP. The 0x5b at offset 1 is data.
	bs := mustBlockSet(t, "605b5b00")
	require.Equal(t, 2, bs.Len())
	assert.Equal(t, uint64(2), bs.Block(1).Start)
	assert.Equal(t, TermFallthrough, bs.Block(0).Terminator)

	_, ok := bs.BlockAt(1)
	assert.False(t, ok)
	_, ok = bs.InstructionAt(1)
	assert.False(t, ok)
	b, ok := bs.BlockContaining(1)
	require.True(t, ok)
	assert.Equal(t, 0, b.ID)
}

func TestSegmentTerminators(t *testing.T) {
	for _, tt := range []struct {
		name string
		code string
		want []Terminator
	}{
		{"end of code", "6001", []Terminator{TermNone}},
		{"dynamic jump", "35565b00", []Terminator{TermJumpDynamic, TermHalt}},
		{"static jumpi", "600457005b00", []Terminator{TermJumpI, TermHalt, TermHalt}},
		{"push0 jump", "5f56", []Terminator{TermJump}},
		{"halts split", "00fe00fd", []Terminator{TermHalt, TermHalt, TermHalt, TermHalt}},
		{"call does not split", "f1f45b", []Terminator{TermFallthrough, TermNone}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			bs := mustBlockSet(t, tt.code)
			got := make([]Terminator, 0, bs.Len())
			for _, b := range bs.Blocks() {
				got = append(got, b.Terminator)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentEmptyCode(t *testing.T) {
	bs := mustBlockSet(t, "")
	assert.Equal(t, 0, bs.Len())
	assert.Nil(t, bs.Block(0))
	_, ok := bs.BlockContaining(0)
	assert.False(t, ok)
}

func TestSegmentCopiesCode(t *testing.T) {
	code := common.FromHex("6003565b00")
	bs, err := NewBlockSet(code)
	require.NoError(t, err)
	code[0] = 0x00
	assert.Equal(t, PUSH1, bs.Block(0).Instructions[0].Op)
}

// Blocks tile the instruction stream with no gaps or overlaps, and every
// block start is 0, a JUMPDEST or follows a block-ending instruction.
func TestSegmentPartition(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 200)
	for i := 0; i < 500; i++ {
		var code []byte
		f.Fuzz(&code)
		code = append(code, make([]byte, 32)...)

		bs, err := NewBlockSet(code)
		require.NoError(t, err)

		var flat []Instruction
		for id, b := range bs.Blocks() {
			require.Equal(t, id, b.ID)
			require.NotEmpty(t, b.Instructions)
			require.Equal(t, b.Start, b.Instructions[0].Offset)
			require.Equal(t, b.End, b.Last().Next())
			if id > 0 {
				prev := bs.Block(id - 1)
				require.Equal(t, prev.End, b.Start)
				require.True(t, b.IsJumpDest() || prev.Last().Op.EndsBlock())
			}
			flat = append(flat, b.Instructions...)
		}
		require.Equal(t, bs.Instructions(), flat)
		require.Equal(t, uint64(len(code)), bs.Block(bs.Len()-1).End)
	}
}
