package annotate

import (
	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/ethereum/go-ethereum/common"
)

// AnyDepth disables the depth constraint of FilterTrace.
const AnyDepth = -1

// FilterTrace returns the matching steps executed by the code at addr,
// optionally only at the given call depth. Steps must have been attributed
// (trace.Attribute or trace.Split). Order and indices are preserved.
func FilterTrace(steps []trace.Step, addr common.Address, depth int, m *Matcher) []trace.Step {
	var out []trace.Step
	for _, st := range steps {
		if st.Address != addr || (depth != AnyDepth && st.Depth != depth) {
			continue
		}
		if m.Match(st.Op) {
			out = append(out, st)
		}
	}
	return out
}
