package cfg

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TraceStep is the part of a recorded execution step the trace-driven
// builder consumes. Index is the position of the step in the full
// transaction trace.
type TraceStep struct {
	Index   int
	PC      uint64
	Op      ByteCode
	GasCost uint64
}

// BuildExecuted replays the steps of one call frame over the blocks of static
// and returns the graph of transitions actually taken. Edges that match a
// static edge keep its kind; anything else was a runtime-computed jump and is
// recorded as EdgeDynamicJump. The result is a lower bound of the contract's
// behaviour: unobserved static edges are never added.
//
// An empty step list yields the entry block alone. A step that does not land
// on a decoded instruction of the bytecode fails the whole segment with
// ErrTraceBytecodeMismatch.
func BuildExecuted(static *CFG, tx common.Hash, steps []TraceStep) (*CFG, error) {
	bs := static.blocks
	c := newCFG(KindExecuted, bs)
	c.tx = tx
	traceSegmentsCounter.Inc(1)

	if len(steps) == 0 {
		if bs.Len() > 0 {
			c.entry = 0
			c.addNode(0)
		}
		return c.freeze(), nil
	}
	var (
		codeLen = uint64(len(bs.Code()))
		prev    *BasicBlock
		prevPC  uint64
	)
	for _, st := range steps {
		// Running off the end of the code is an implicit STOP, and tracers
		// report it with pc == len(code).
		if st.PC == codeLen && st.Op == STOP {
			continue
		}
		ins, ok := bs.InstructionAt(st.PC)
		if !ok {
			return nil, c.mismatch(st, "pc is not an instruction offset")
		}
		if ins.Op != st.Op {
			return nil, c.mismatch(st, fmt.Sprintf("trace executes %v, code has %v", st.Op, ins.Op))
		}
		b, _ := bs.BlockContaining(st.PC)
		switch {
		case prev == nil:
			c.entry = b.ID
			c.entries[b.ID]++
			c.visits[b.ID]++
			c.addNode(b.ID)

		case b != prev || (st.PC == b.Start && prevPC == prev.Last().Offset):
			if st.PC != b.Start {
				return nil, c.mismatch(st, fmt.Sprintf("control enters block %d mid-way", b.Start))
			}
			if prevPC != prev.Last().Offset {
				return nil, c.mismatch(st, fmt.Sprintf("control leaves block %d before its end", prev.Start))
			}
			c.addEdge(prev.ID, b.ID, transitionKind(static, prev, b), 1)
			c.visits[b.ID]++
		}
		c.gas[b.ID] += st.GasCost
		prev, prevPC = b, st.PC
	}
	return c.freeze(), nil
}

func transitionKind(static *CFG, from, to *BasicBlock) EdgeKind {
	if e, ok := static.FindEdge(from.ID, to.ID); ok {
		return e.Kind
	}
	// Not-taken branch of a JUMPI with a computed destination.
	if from.Terminator == TermJumpDynamic && from.Conditional() && to.Start == from.End {
		return EdgeFallthrough
	}
	return EdgeDynamicJump
}

func (c *CFG) mismatch(st TraceStep, detail string) error {
	traceMismatchCounter.Inc(1)
	err := &BuildError{
		Kind:     ErrTraceBytecodeMismatch,
		CodeHash: c.blocks.Hash(),
		TxHash:   c.tx,
		Offset:   st.PC,
		Step:     st.Index,
		Detail:   detail,
	}
	debugWarn("Trace does not match bytecode", "err", err)
	return err
}
