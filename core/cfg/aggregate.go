package cfg

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Merge unions executed (or already aggregated) CFGs of the same bytecode
// into a new aggregated CFG. Edge weights, block visits, gas and entry counts
// are summed, so the result does not depend on the order or grouping of the
// inputs. The inputs are not modified.
func Merge(cfgs ...*CFG) (*CFG, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoCFG
	}
	bs := cfgs[0].blocks
	for _, c := range cfgs[1:] {
		if c.CodeHash() != bs.Hash() {
			return nil, &BuildError{
				Kind:     ErrCodeHashMismatch,
				CodeHash: bs.Hash(),
				Step:     -1,
				Detail:   "other " + c.CodeHash().Hex(),
			}
		}
	}
	out := newCFG(KindAggregated, bs)
	for _, c := range cfgs {
		out.absorb(c)
	}
	aggregateMergedCounter.Inc(int64(len(cfgs)))
	return out.freeze(), nil
}

func (c *CFG) absorb(o *CFG) {
	for id := range o.nodes {
		c.addNode(id)
	}
	for k, w := range o.edges {
		c.edges[k] += w
	}
	for id, n := range o.visits {
		c.visits[id] += n
	}
	for id, g := range o.gas {
		c.gas[id] += g
	}
	for id, n := range o.entries {
		c.entries[id] += n
	}
	// Lowest entry wins: the choice must be commutative.
	if o.entry >= 0 && (c.entry < 0 || o.entry < c.entry) {
		c.entry = o.entry
	}
}

// MergeAll groups cfgs by bytecode hash and merges each group. It never
// fails; nil inputs are skipped.
func MergeAll(cfgs []*CFG) map[common.Hash]*CFG {
	groups := make(map[common.Hash][]*CFG)
	for _, c := range cfgs {
		if c == nil {
			continue
		}
		groups[c.CodeHash()] = append(groups[c.CodeHash()], c)
	}
	out := make(map[common.Hash]*CFG, len(groups))
	for hash, group := range groups {
		merged, _ := Merge(group...) // same hash and non-empty by construction
		out[hash] = merged
	}
	return out
}

// MergeParallel merges cfgs of one bytecode pairwise in a balanced tree,
// each level concurrently. The result equals Merge(cfgs...).
func MergeParallel(cfgs []*CFG) (*CFG, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoCFG
	}
	level := cfgs
	for len(level) > 1 {
		next := make([]*CFG, (len(level)+1)/2)
		var g errgroup.Group
		for i := range next {
			if 2*i+1 == len(level) {
				next[i] = level[2*i]
				continue
			}
			i := i
			g.Go(func() (err error) {
				next[i], err = Merge(level[2*i], level[2*i+1])
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		level = next
	}
	if level[0].kind != KindAggregated {
		return Merge(level[0])
	}
	return level[0], nil
}
