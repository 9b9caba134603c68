package cfg

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Terminator classifies how control leaves a basic block.
type Terminator uint8

const (
	TermFallthrough Terminator = iota // next instruction is a JUMPDEST
	TermJump                          // JUMP with a constant pushed destination
	TermJumpI                         // JUMPI with a constant pushed destination
	TermJumpDynamic                   // JUMP/JUMPI whose destination is computed
	TermHalt                          // STOP, RETURN, REVERT, INVALID, SELFDESTRUCT
	TermNone                          // code ends inside the block
)

var terminatorNames = [...]string{
	TermFallthrough: "FALLTHROUGH",
	TermJump:        "JUMP",
	TermJumpI:       "JUMPI",
	TermJumpDynamic: "JUMP_DYNAMIC",
	TermHalt:        "TERMINAL",
	TermNone:        "NONE",
}

func (t Terminator) String() string {
	if int(t) < len(terminatorNames) {
		return terminatorNames[t]
	}
	return "UNKNOWN"
}

// BasicBlock is a maximal straight-line run of instructions. ID is the index
// of the block inside its BlockSet and is shared by every CFG built on it.
type BasicBlock struct {
	ID           int
	Start        uint64
	End          uint64 // exclusive
	Instructions []Instruction
	Terminator   Terminator

	target *uint256.Int // pushed destination of a static jump
}

// Last returns the final instruction of the block.
func (b *BasicBlock) Last() Instruction { return b.Instructions[len(b.Instructions)-1] }

// IsJumpDest reports whether the block is a legal jump destination.
func (b *BasicBlock) IsJumpDest() bool { return b.Instructions[0].Op == JUMPDEST }

// Conditional reports whether the block ends in a JUMPI, static or dynamic.
func (b *BasicBlock) Conditional() bool { return b.Last().Op == JUMPI }

// StaticTarget returns the constant destination of a JUMP/JUMPI terminator.
// ok is false when the block has no such terminator or the constant does not
// fit a code offset.
func (b *BasicBlock) StaticTarget() (target uint64, ok bool) {
	if b.target == nil || !b.target.IsUint64() {
		return 0, false
	}
	return b.target.Uint64(), true
}

// TargetWord returns a copy of the pushed jump destination, nil for blocks
// without a static jump.
func (b *BasicBlock) TargetWord() *uint256.Int {
	if b.target == nil {
		return nil
	}
	return new(uint256.Int).Set(b.target)
}

// BlockSet is the segmentation of one bytecode. It is immutable once built
// and safe for concurrent use; caches hand the same instance to every caller.
type BlockSet struct {
	hash   common.Hash
	code   []byte
	instrs []Instruction
	blocks []*BasicBlock
	starts []uint64 // starts[i] == blocks[i].Start, ascending
}

// NewBlockSet decodes code and partitions it into basic blocks. A block starts
// at offset 0, at every decoded JUMPDEST and after every JUMP, JUMPI and
// halting instruction. JUMPDEST bytes inside push data are not boundaries.
func NewBlockSet(code []byte) (*BlockSet, error) {
	code = common.CopyBytes(code)
	instrs, err := Decode(code)
	if err != nil {
		return nil, err
	}
	bs := &BlockSet{
		hash:   crypto.Keccak256Hash(code),
		code:   code,
		instrs: instrs,
	}
	bs.segment()
	debugInfo("Segmented bytecode", "hash", bs.hash, "size", len(code), "instructions", len(instrs), "blocks", len(bs.blocks))
	return bs, nil
}

func (bs *BlockSet) segment() {
	var cur *BasicBlock
	closeBlock := func() {
		if cur == nil {
			return
		}
		n := len(cur.Instructions)
		cur.Instructions = cur.Instructions[:n:n]
		cur.End = cur.Last().Next()
		cur.Terminator, cur.target = classify(cur, uint64(len(bs.code)))
		bs.blocks = append(bs.blocks, cur)
		bs.starts = append(bs.starts, cur.Start)
		cur = nil
	}
	for i, ins := range bs.instrs {
		if ins.Op == JUMPDEST {
			closeBlock()
		}
		if cur == nil {
			// Sub-slicing keeps every block a view onto the shared instruction arena.
			cur = &BasicBlock{ID: len(bs.blocks), Start: ins.Offset, Instructions: bs.instrs[i : i : len(bs.instrs)]}
		}
		cur.Instructions = cur.Instructions[:len(cur.Instructions)+1]
		if ins.Op.EndsBlock() {
			closeBlock()
		}
	}
	closeBlock()
}

// classify derives the terminator of a finished block. The pushed destination
// is only trusted when the push immediately precedes the jump.
func classify(b *BasicBlock, codeLen uint64) (Terminator, *uint256.Int) {
	last := b.Last()
	switch {
	case last.Op.IsHalt():
		return TermHalt, nil
	case last.Op.IsJump():
		n := len(b.Instructions)
		if n < 2 || !b.Instructions[n-2].Op.IsPush() {
			return TermJumpDynamic, nil
		}
		target := b.Instructions[n-2].PushValue()
		if last.Op == JUMP {
			return TermJump, target
		}
		return TermJumpI, target
	case b.End >= codeLen:
		return TermNone, nil
	default:
		return TermFallthrough, nil
	}
}

func (bs *BlockSet) Hash() common.Hash { return bs.hash }

// Code returns the segmented bytecode. Callers must not modify it.
func (bs *BlockSet) Code() []byte { return bs.code }

// Instructions returns the full decoded instruction stream.
func (bs *BlockSet) Instructions() []Instruction { return bs.instrs }

// Blocks returns all blocks ordered by start offset.
func (bs *BlockSet) Blocks() []*BasicBlock { return bs.blocks }

func (bs *BlockSet) Len() int { return len(bs.blocks) }

// Block returns the block with the given id.
func (bs *BlockSet) Block(id int) *BasicBlock {
	if id < 0 || id >= len(bs.blocks) {
		return nil
	}
	return bs.blocks[id]
}

// BlockAt returns the block starting exactly at offset.
func (bs *BlockSet) BlockAt(offset uint64) (*BasicBlock, bool) {
	i := sort.Search(len(bs.starts), func(i int) bool { return bs.starts[i] >= offset })
	if i < len(bs.starts) && bs.starts[i] == offset {
		return bs.blocks[i], true
	}
	return nil, false
}

// BlockContaining returns the block whose byte range covers pc.
func (bs *BlockSet) BlockContaining(pc uint64) (*BasicBlock, bool) {
	i := sort.Search(len(bs.starts), func(i int) bool { return bs.starts[i] > pc })
	if i == 0 {
		return nil, false
	}
	b := bs.blocks[i-1]
	if pc >= b.End {
		return nil, false
	}
	return b, true
}

// InstructionAt returns the instruction starting at pc. Offsets inside push
// data are not instructions.
func (bs *BlockSet) InstructionAt(pc uint64) (Instruction, bool) {
	b, ok := bs.BlockContaining(pc)
	if !ok {
		return Instruction{}, false
	}
	instrs := b.Instructions
	i := sort.Search(len(instrs), func(i int) bool { return instrs[i].Offset >= pc })
	if i < len(instrs) && instrs[i].Offset == pc {
		return instrs[i], true
	}
	return Instruction{}, false
}

// isJumpTarget reports whether offset is a legal jump destination.
func (bs *BlockSet) isJumpTarget(offset uint64) (*BasicBlock, bool) {
	b, ok := bs.BlockAt(offset)
	if !ok || !b.IsJumpDest() {
		return nil, false
	}
	return b, true
}
