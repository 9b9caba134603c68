package trace

import (
	"fmt"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
)

// Segment is the run of steps one call frame executed, with the steps of
// nested frames removed. A transaction yields one segment per frame.
type Segment struct {
	TxHash  common.Hash
	Frame   int // frame-open order within the transaction, 0 for the top call
	Depth   int
	Address common.Address
	Storage common.Address
	Create  bool
	Steps   []Step
}

// Trace returns the segment in the form cfg.BuildExecuted consumes.
func (s *Segment) Trace() []cfg.TraceStep { return CFGSteps(s.Steps) }

func (s *Segment) String() string {
	return fmt.Sprintf("frame %d depth %d %s (%d steps)", s.Frame, s.Depth, s.Address.Hex(), len(s.Steps))
}

type frame struct {
	code    common.Address
	storage common.Address
	create  bool
}

// Attribute sets Address, Storage and Create on every step, given the
// address the transaction calls. A frame opens when the step after a
// CALL-family or CREATE step is one level deeper; calls that do not execute
// code, such as precompiles or transfers to accounts without code, leave the
// depth unchanged and open nothing. CALL and STATICCALL run the callee's code
// on the callee's storage, DELEGATECALL and CALLCODE run it on the caller's.
func Attribute(root common.Address, steps []Step) error {
	return attribute(frame{code: root, storage: root}, steps)
}

// AttributeCreation is Attribute for a contract-creation transaction, whose
// top frame runs init code.
func AttributeCreation(steps []Step) error {
	return attribute(frame{create: true}, steps)
}

func attribute(root frame, steps []Step) error {
	if len(steps) == 0 {
		return nil
	}
	base := steps[0].Depth
	frames := []frame{root}
	for i := range steps {
		st := &steps[i]
		level := st.Depth - base
		if level < 0 {
			return fmt.Errorf("%w: step %d at depth %d below root depth %d", ErrMalformedTrace, st.Index, st.Depth, base)
		}
		if level > len(frames) {
			return fmt.Errorf("%w: step %d enters depth %d from %d", ErrMalformedTrace, st.Index, st.Depth, base+len(frames)-1)
		}
		if level == len(frames) {
			frames = append(frames, openFrame(&steps[i-1], frames[len(frames)-1]))
		}
		frames = frames[:level+1]

		cur := frames[level]
		st.Address, st.Storage, st.Create = cur.code, cur.storage, cur.create
	}
	return nil
}

func openFrame(caller *Step, parent frame) frame {
	switch caller.Op {
	case cfg.CALL, cfg.STATICCALL:
		addr, _ := caller.CallTarget()
		return frame{code: addr, storage: addr}
	case cfg.DELEGATECALL, cfg.CALLCODE:
		addr, _ := caller.CallTarget()
		return frame{code: addr, storage: parent.storage}
	default:
		// CREATE, CREATE2 or an opcode that should not have nested.
		return frame{create: true}
	}
}

// Split attributes steps and cuts them into per-frame segments, returned in
// the order the frames were opened. Steps keep their trace indices. An empty
// trace yields no segments.
func Split(tx common.Hash, root common.Address, steps []Step) ([]*Segment, error) {
	if err := Attribute(root, steps); err != nil {
		return nil, err
	}
	return cut(tx, steps), nil
}

// SplitCreation is Split for a contract-creation transaction.
func SplitCreation(tx common.Hash, steps []Step) ([]*Segment, error) {
	if err := AttributeCreation(steps); err != nil {
		return nil, err
	}
	return cut(tx, steps), nil
}

func cut(tx common.Hash, steps []Step) []*Segment {
	var (
		segments []*Segment
		open     []*Segment
	)
	for _, st := range steps {
		for len(open) > 0 && open[len(open)-1].Depth > st.Depth {
			open = open[:len(open)-1]
		}
		if len(open) == 0 || open[len(open)-1].Depth < st.Depth {
			seg := &Segment{
				TxHash:  tx,
				Frame:   len(segments),
				Depth:   st.Depth,
				Address: st.Address,
				Storage: st.Storage,
				Create:  st.Create,
			}
			segments = append(segments, seg)
			open = append(open, seg)
		}
		top := open[len(open)-1]
		top.Steps = append(top.Steps, st)
	}
	return segments
}
