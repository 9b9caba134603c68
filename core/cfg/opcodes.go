package cfg

import (
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
)

// ByteCode is a single EVM opcode byte. Mnemonics are taken from go-ethereum's
// vm.OpCode table, control-flow classification from opTable below.
type ByteCode byte

const (
	STOP   ByteCode = 0x0
	ADD    ByteCode = 0x1
	LT     ByteCode = 0x10
	EQ     ByteCode = 0x14
	ISZERO ByteCode = 0x15

	KECCAK256 ByteCode = 0x20

	CALLVALUE    ByteCode = 0x34
	CALLDATALOAD ByteCode = 0x35
	CALLDATASIZE ByteCode = 0x36

	POP      ByteCode = 0x50
	MLOAD    ByteCode = 0x51
	MSTORE   ByteCode = 0x52
	SLOAD    ByteCode = 0x54
	SSTORE   ByteCode = 0x55
	JUMP     ByteCode = 0x56
	JUMPI    ByteCode = 0x57
	PC       ByteCode = 0x58
	GAS      ByteCode = 0x5a
	JUMPDEST ByteCode = 0x5b
	TLOAD    ByteCode = 0x5c
	TSTORE   ByteCode = 0x5d
	PUSH0    ByteCode = 0x5f

	PUSH1  ByteCode = 0x60
	PUSH2  ByteCode = 0x61
	PUSH4  ByteCode = 0x63
	PUSH20 ByteCode = 0x73
	PUSH32 ByteCode = 0x7f

	DUP1  ByteCode = 0x80
	SWAP1 ByteCode = 0x90

	LOG0 ByteCode = 0xa0
	LOG4 ByteCode = 0xa4

	CREATE       ByteCode = 0xf0
	CALL         ByteCode = 0xf1
	CALLCODE     ByteCode = 0xf2
	RETURN       ByteCode = 0xf3
	DELEGATECALL ByteCode = 0xf4
	CREATE2      ByteCode = 0xf5
	STATICCALL   ByteCode = 0xfa
	REVERT       ByteCode = 0xfd
	INVALID      ByteCode = 0xfe
	SELFDESTRUCT ByteCode = 0xff
)

type opClass uint8

const (
	classHalt opClass = 1 << iota
	classJump
	classCall
	classCreate
)

type opInfo struct {
	class    opClass
	pushSize int
	name     string
}

var (
	opTable    [256]opInfo
	nameToCode map[string]ByteCode
)

// Mnemonics some tracers emit for opcodes go-ethereum has since renamed.
var opAliases = map[string]ByteCode{
	"SHA3":       KECCAK256,
	"SUICIDE":    SELFDESTRUCT,
	"DIFFICULTY": 0x44,
	"PREVRANDAO": 0x44,
	"RANDOM":     0x44,
}

func init() {
	nameToCode = make(map[string]ByteCode, 256)
	for i := 0; i < 256; i++ {
		op := ByteCode(i)
		info := opInfo{name: vm.OpCode(op).String()}
		if op >= PUSH1 && op <= PUSH32 {
			info.pushSize = int(op-PUSH1) + 1
		}
		switch op {
		case STOP, RETURN, REVERT, INVALID, SELFDESTRUCT:
			info.class |= classHalt
		case JUMP, JUMPI:
			info.class |= classJump
		case CALL, CALLCODE, DELEGATECALL, STATICCALL:
			info.class |= classCall
		case CREATE, CREATE2:
			info.class |= classCreate
		}
		opTable[i] = info
		if !strings.Contains(info.name, "not defined") {
			nameToCode[info.name] = op
		}
	}
	for name, op := range opAliases {
		if _, ok := nameToCode[name]; !ok {
			nameToCode[name] = op
		}
	}
}

func (op ByteCode) String() string { return opTable[op].name }

// PushSize returns the number of immediate bytes following the opcode.
func (op ByteCode) PushSize() int { return opTable[op].pushSize }

// IsPush reports whether op pushes a constant, PUSH0 included.
func (op ByteCode) IsPush() bool { return op == PUSH0 || opTable[op].pushSize > 0 }

// IsHalt reports whether op ends execution of the current frame.
func (op ByteCode) IsHalt() bool { return opTable[op].class&classHalt != 0 }

func (op ByteCode) IsJump() bool { return opTable[op].class&classJump != 0 }

// IsCall reports whether op belongs to the CALL family.
func (op ByteCode) IsCall() bool { return opTable[op].class&classCall != 0 }

func (op ByteCode) IsCreate() bool { return opTable[op].class&classCreate != 0 }

// EndsBlock reports whether the instruction following op starts a new block.
func (op ByteCode) EndsBlock() bool { return op.IsHalt() || op.IsJump() }

// OpByName resolves a mnemonic as printed by tracers. Lookup is case-insensitive.
func OpByName(name string) (ByteCode, bool) {
	op, ok := nameToCode[strings.ToUpper(name)]
	return op, ok
}
