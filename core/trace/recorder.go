package trace

import (
	"sync"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/holiman/uint256"
)

// Recorder collects steps from a live EVM through the tracing hooks. It is
// the in-process counterpart of DecodeStructLogs.
type Recorder struct {
	mu        sync.Mutex
	steps     []Step
	fullStack bool
}

// NewRecorder returns a recorder. Unless fullStack is set, stacks are only
// kept for the opcodes whose arguments are inspected later: the CALL and
// CREATE families, SLOAD and SSTORE.
func NewRecorder(fullStack bool) *Recorder {
	return &Recorder{fullStack: fullStack}
}

// Hooks returns the tracer to plug into vm.Config.
func (r *Recorder) Hooks() *tracing.Hooks {
	return &tracing.Hooks{OnOpcode: r.onOpcode}
}

func (r *Recorder) onOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, _ []byte, depth int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Step{
		Index:   len(r.steps),
		PC:      pc,
		Op:      cfg.ByteCode(op),
		Gas:     gas,
		GasCost: cost,
		Depth:   depth,
	}
	if r.fullStack || keepsStack(st.Op) {
		st.Stack = append([]uint256.Int(nil), scope.StackData()...)
	}
	// The value an SLOAD read is the top of the next step's stack.
	if n := len(r.steps); n > 0 && r.steps[n-1].Op == cfg.SLOAD && st.Stack == nil {
		if data := scope.StackData(); len(data) > 0 {
			st.Stack = []uint256.Int{data[len(data)-1]}
		}
	}
	r.steps = append(r.steps, st)
}

func keepsStack(op cfg.ByteCode) bool {
	return op.IsCall() || op.IsCreate() || op == cfg.SLOAD || op == cfg.SSTORE
}

// Steps returns the steps recorded so far.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step(nil), r.steps...)
}

// Reset drops all recorded steps.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.steps = nil
	r.mu.Unlock()
}
