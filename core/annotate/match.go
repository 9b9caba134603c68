// Package annotate tags CFG blocks and trace steps that carry external calls
// or storage writes, and derives value transfers and balance changes from a
// trace. Nothing here modifies the graphs or traces it reads.
package annotate

import (
	"sort"

	"github.com/bnb-chain/evmcfg/core/cfg"
	mapset "github.com/deckarep/golang-set/v2"
)

// Matcher selects the opcodes of interest.
type Matcher struct {
	ops mapset.Set[cfg.ByteCode]
}

// NewMatcher matches exactly ops.
func NewMatcher(ops ...cfg.ByteCode) *Matcher {
	return &Matcher{ops: mapset.NewThreadUnsafeSet(ops...)}
}

// DefaultMatcher matches the CALL family and SSTORE.
func DefaultMatcher() *Matcher {
	return NewMatcher(cfg.CALL, cfg.CALLCODE, cfg.DELEGATECALL, cfg.STATICCALL, cfg.SSTORE)
}

// MatcherFromNames builds a matcher from opcode mnemonics. Unknown names are
// returned rather than ignored.
func MatcherFromNames(names []string) (*Matcher, []string) {
	var (
		m       = NewMatcher()
		unknown []string
	)
	for _, name := range names {
		if op, ok := cfg.OpByName(name); ok {
			m.ops.Add(op)
		} else {
			unknown = append(unknown, name)
		}
	}
	return m, unknown
}

func (m *Matcher) Match(op cfg.ByteCode) bool { return m.ops.Contains(op) }

// Names lists the matched mnemonics in opcode order.
func (m *Matcher) Names() []string {
	ops := m.ops.ToSlice()
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}

// Match is one tagged instruction.
type Match struct {
	Offset uint64
	Op     cfg.ByteCode
}

// TagBlocks returns, for every block of c holding at least one matching
// instruction, the matches in ascending offset order, keyed by block id.
func TagBlocks(c *cfg.CFG, m *Matcher) map[int][]Match {
	tags := make(map[int][]Match)
	for _, b := range c.Blocks() {
		for _, ins := range b.Instructions {
			if m.Match(ins.Op) {
				tags[b.ID] = append(tags[b.ID], Match{Offset: ins.Offset, Op: ins.Op})
			}
		}
	}
	return tags
}
