package cfg

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Instruction is one decoded opcode together with its push immediate.
type Instruction struct {
	Offset    uint64
	Op        ByteCode
	Immediate []byte
}

// Len returns the encoded size of the instruction in bytes.
func (ins Instruction) Len() uint64 { return 1 + uint64(len(ins.Immediate)) }

// Next returns the offset of the instruction that follows.
func (ins Instruction) Next() uint64 { return ins.Offset + ins.Len() }

// PushValue returns the pushed constant, or nil if ins is not a push.
func (ins Instruction) PushValue() *uint256.Int {
	if !ins.Op.IsPush() {
		return nil
	}
	return new(uint256.Int).SetBytes(ins.Immediate)
}

func (ins Instruction) String() string {
	if len(ins.Immediate) > 0 {
		return fmt.Sprintf("%05d: %v %s", ins.Offset, ins.Op, hexutil.Encode(ins.Immediate))
	}
	return fmt.Sprintf("%05d: %v", ins.Offset, ins.Op)
}

// Decode splits code into instructions. Push immediates are consumed whole
// and never reinterpreted as opcodes; a push that runs past the end of code
// fails with ErrMalformedBytecode.
func Decode(code []byte) ([]Instruction, error) {
	instrs := make([]Instruction, 0, len(code))
	for pc := uint64(0); pc < uint64(len(code)); {
		op := ByteCode(code[pc])
		ins := Instruction{Offset: pc, Op: op}
		if n := uint64(op.PushSize()); n > 0 {
			end := pc + 1 + n
			if end > uint64(len(code)) {
				return nil, &BuildError{
					Kind:     ErrMalformedBytecode,
					CodeHash: crypto.Keccak256Hash(code),
					Offset:   pc,
					Step:     -1,
					Detail:   fmt.Sprintf("%v needs %d bytes, %d left", op, n, uint64(len(code))-pc-1),
				}
			}
			ins.Immediate = code[pc+1 : end : end]
		}
		instrs = append(instrs, ins)
		pc = ins.Next()
	}
	return instrs, nil
}

// Disassemble renders instructions one per line.
func Disassemble(instrs []Instruction) string {
	var sb strings.Builder
	for _, ins := range instrs {
		sb.WriteString(ins.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
