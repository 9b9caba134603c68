// Package trace models recorded EVM execution steps and splits a transaction
// trace into the per-call-frame segments the CFG builders consume.
package trace

import (
	"errors"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrMalformedTrace is returned when call depths in a trace cannot describe a
// call stack: a depth that grows by more than one between two steps, or that
// falls below the depth of the first step.
var ErrMalformedTrace = errors.New("malformed trace")

// Step is one executed instruction of a transaction trace.
type Step struct {
	Index   int // position in the transaction trace
	PC      uint64
	Op      cfg.ByteCode
	Gas     uint64 // gas left before the step
	GasCost uint64
	Depth   int // 1 for the top-level call frame
	Stack   []uint256.Int

	// Filled in by Attribute.
	Address common.Address // account whose code runs
	Storage common.Address // account whose storage SLOAD/SSTORE touch
	Create  bool           // frame runs init code, Address is unknown
}

// StackBack returns the n'th item from the top of the stack, nil if the
// stack is shallower or was not recorded.
func (s *Step) StackBack(n int) *uint256.Int {
	if n < 0 || n >= len(s.Stack) {
		return nil
	}
	return &s.Stack[len(s.Stack)-1-n]
}

// Call arguments are read off the stack before the call executes.
const (
	callAddrIdx  = 1 // CALL-family: gas, addr, ...
	callValueIdx = 2 // CALL, CALLCODE: gas, addr, value, ...
)

// CallTarget returns the address a CALL-family step calls into.
func (s *Step) CallTarget() (common.Address, bool) {
	if !s.Op.IsCall() {
		return common.Address{}, false
	}
	v := s.StackBack(callAddrIdx)
	if v == nil {
		return common.Address{}, false
	}
	return common.Address(v.Bytes20()), true
}

// CallValue returns the wei transferred by a CALL or CALLCODE step.
func (s *Step) CallValue() (*uint256.Int, bool) {
	if s.Op != cfg.CALL && s.Op != cfg.CALLCODE {
		return nil, false
	}
	v := s.StackBack(callValueIdx)
	if v == nil {
		return nil, false
	}
	return new(uint256.Int).Set(v), true
}

// StorageSlot returns the slot argument of an SLOAD or SSTORE step.
func (s *Step) StorageSlot() (common.Hash, bool) {
	if s.Op != cfg.SLOAD && s.Op != cfg.SSTORE {
		return common.Hash{}, false
	}
	v := s.StackBack(0)
	if v == nil {
		return common.Hash{}, false
	}
	return common.Hash(v.Bytes32()), true
}

// StoredValue returns the value written by an SSTORE step.
func (s *Step) StoredValue() (*uint256.Int, bool) {
	if s.Op != cfg.SSTORE {
		return nil, false
	}
	v := s.StackBack(1)
	if v == nil {
		return nil, false
	}
	return new(uint256.Int).Set(v), true
}

// CFGSteps strips steps down to what the trace-driven builder needs.
func CFGSteps(steps []Step) []cfg.TraceStep {
	out := make([]cfg.TraceStep, len(steps))
	for i := range steps {
		out[i] = cfg.TraceStep{
			Index:   steps[i].Index,
			PC:      steps[i].PC,
			Op:      steps[i].Op,
			GasCost: steps[i].GasCost,
		}
	}
	return out
}
