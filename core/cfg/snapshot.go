package cfg

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the storable form of an executed or aggregated CFG. It holds
// everything but the bytecode, which the reader supplies again on Restore.
// All fields are unsigned so the struct encodes as RLP.
type Snapshot struct {
	CodeHash common.Hash
	Entry    uint64 // entry block id + 1, zero when the graph is empty
	Nodes    []NodeStat
	Edges    []EdgeStat
}

type NodeStat struct {
	ID      uint64
	Visits  uint64
	Gas     uint64
	Entries uint64
}

type EdgeStat struct {
	From   uint64
	To     uint64
	Kind   uint8
	Weight uint64
}

// Snapshot captures the counters of c, nodes and edges in ascending order.
func (c *CFG) Snapshot() *Snapshot {
	s := &Snapshot{
		CodeHash: c.CodeHash(),
		Entry:    uint64(c.entry + 1),
		Nodes:    make([]NodeStat, 0, len(c.nodeList)),
		Edges:    make([]EdgeStat, 0, len(c.edgeList)),
	}
	for _, id := range c.nodeList {
		s.Nodes = append(s.Nodes, NodeStat{
			ID:      uint64(id),
			Visits:  c.visits[id],
			Gas:     c.gas[id],
			Entries: c.entries[id],
		})
	}
	for _, e := range c.edgeList {
		s.Edges = append(s.Edges, EdgeStat{From: uint64(e.From), To: uint64(e.To), Kind: uint8(e.Kind), Weight: e.Weight})
	}
	return s
}

// Restore rebuilds an aggregated CFG from s over the blocks of bs. It fails
// if s was taken from other bytecode or names blocks bs does not have.
func Restore(bs *BlockSet, s *Snapshot) (*CFG, error) {
	if s.CodeHash != bs.Hash() {
		return nil, &BuildError{Kind: ErrCodeHashMismatch, CodeHash: bs.Hash(), Step: -1, Detail: "snapshot of " + s.CodeHash.Hex()}
	}
	valid := func(id uint64) bool { return id < uint64(bs.Len()) }

	c := newCFG(KindAggregated, bs)
	if s.Entry > 0 {
		if !valid(s.Entry - 1) {
			return nil, fmt.Errorf("snapshot entry %d out of range", s.Entry-1)
		}
		c.entry = int(s.Entry - 1)
		c.addNode(c.entry)
	}
	for _, n := range s.Nodes {
		if !valid(n.ID) {
			return nil, fmt.Errorf("snapshot block %d out of range", n.ID)
		}
		id := int(n.ID)
		c.addNode(id)
		if n.Visits > 0 {
			c.visits[id] = n.Visits
		}
		if n.Gas > 0 {
			c.gas[id] = n.Gas
		}
		if n.Entries > 0 {
			c.entries[id] = n.Entries
		}
	}
	for _, e := range s.Edges {
		if !valid(e.From) || !valid(e.To) || e.Kind > uint8(EdgeDynamicJump) {
			return nil, fmt.Errorf("snapshot edge %d->%d kind %d invalid", e.From, e.To, e.Kind)
		}
		c.addEdge(int(e.From), int(e.To), EdgeKind(e.Kind), e.Weight)
	}
	return c.freeze(), nil
}
