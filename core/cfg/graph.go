package cfg

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// EdgeKind says how an edge was established.
type EdgeKind uint8

const (
	EdgeFallthrough EdgeKind = iota
	EdgeStaticJump
	EdgeDynamicJump
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFallthrough:
		return "FALLTHROUGH"
	case EdgeStaticJump:
		return "STATIC_JUMP"
	case EdgeDynamicJump:
		return "DYNAMIC_JUMP"
	}
	return "UNKNOWN"
}

// EdgeKey identifies an edge independently of its weight.
type EdgeKey struct {
	From int
	To   int
	Kind EdgeKind
}

// Edge connects two blocks of the same BlockSet by id. Weight counts trace
// observations and is zero in static CFGs.
type Edge struct {
	From   int
	To     int
	Kind   EdgeKind
	Weight uint64
}

func (e Edge) Key() EdgeKey { return EdgeKey{e.From, e.To, e.Kind} }

// Kind tells static, executed and aggregated CFGs apart.
type Kind uint8

const (
	KindStatic Kind = iota
	KindExecuted
	KindAggregated
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindExecuted:
		return "executed"
	case KindAggregated:
		return "aggregated"
	}
	return "unknown"
}

// CFG is a graph over the blocks of a single BlockSet. Nodes and edges refer
// to blocks by id. A CFG is read-only once returned by a builder.
type CFG struct {
	kind   Kind
	blocks *BlockSet
	tx     common.Hash
	entry  int // -1 for empty code

	nodes   map[int]struct{}
	visits  map[int]uint64
	gas     map[int]uint64
	entries map[int]uint64
	edges   map[EdgeKey]uint64

	unresolved map[int]*BuildError
	dynamic    []int

	// derived in freeze
	edgeList []Edge
	nodeList []int
	succ     map[int][]Edge
	pred     map[int][]Edge
}

func newCFG(kind Kind, bs *BlockSet) *CFG {
	return &CFG{
		kind:       kind,
		blocks:     bs,
		entry:      -1,
		nodes:      make(map[int]struct{}),
		visits:     make(map[int]uint64),
		gas:        make(map[int]uint64),
		entries:    make(map[int]uint64),
		edges:      make(map[EdgeKey]uint64),
		unresolved: make(map[int]*BuildError),
	}
}

func (c *CFG) addNode(id int) { c.nodes[id] = struct{}{} }

func (c *CFG) addEdge(from, to int, kind EdgeKind, weight uint64) {
	c.addNode(from)
	c.addNode(to)
	c.edges[EdgeKey{from, to, kind}] += weight
}

// freeze builds the sorted views handed out by the accessors. It must be the
// last call a builder makes.
func (c *CFG) freeze() *CFG {
	c.nodeList = make([]int, 0, len(c.nodes))
	for id := range c.nodes {
		c.nodeList = append(c.nodeList, id)
	}
	sort.Ints(c.nodeList)

	c.edgeList = make([]Edge, 0, len(c.edges))
	for k, w := range c.edges {
		c.edgeList = append(c.edgeList, Edge{From: k.From, To: k.To, Kind: k.Kind, Weight: w})
	}
	sort.Slice(c.edgeList, func(i, j int) bool {
		a, b := c.edgeList[i], c.edgeList[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
	c.succ = make(map[int][]Edge)
	c.pred = make(map[int][]Edge)
	for _, e := range c.edgeList {
		c.succ[e.From] = append(c.succ[e.From], e)
		c.pred[e.To] = append(c.pred[e.To], e)
	}
	sort.Ints(c.dynamic)
	return c
}

func (c *CFG) Kind() Kind { return c.kind }

// BlockSet returns the segmentation the CFG is built on.
func (c *CFG) BlockSet() *BlockSet { return c.blocks }

func (c *CFG) CodeHash() common.Hash { return c.blocks.Hash() }

// TxHash returns the transaction an executed CFG was derived from.
func (c *CFG) TxHash() common.Hash { return c.tx }

// Entry returns the entry block, nil for empty bytecode.
func (c *CFG) Entry() *BasicBlock { return c.blocks.Block(c.entry) }

// EntryID returns the id of the entry block or -1.
func (c *CFG) EntryID() int { return c.entry }

// Blocks returns the blocks present in the graph ordered by start offset.
func (c *CFG) Blocks() []*BasicBlock {
	out := make([]*BasicBlock, len(c.nodeList))
	for i, id := range c.nodeList {
		out[i] = c.blocks.Block(id)
	}
	return out
}

// Contains reports whether block id is a node of the graph.
func (c *CFG) Contains(id int) bool {
	_, ok := c.nodes[id]
	return ok
}

func (c *CFG) NumBlocks() int { return len(c.nodeList) }

func (c *CFG) NumEdges() int { return len(c.edgeList) }

// Edges returns all edges ordered by source, destination and kind.
func (c *CFG) Edges() []Edge {
	return append([]Edge(nil), c.edgeList...)
}

// Edge looks up a single edge.
func (c *CFG) Edge(from, to int, kind EdgeKind) (Edge, bool) {
	w, ok := c.edges[EdgeKey{from, to, kind}]
	if !ok {
		return Edge{}, false
	}
	return Edge{From: from, To: to, Kind: kind, Weight: w}, true
}

// FindEdge returns the edge between two blocks regardless of its kind.
func (c *CFG) FindEdge(from, to int) (Edge, bool) {
	for _, e := range c.succ[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

func (c *CFG) Successors(id int) []Edge { return c.succ[id] }

func (c *CFG) Predecessors(id int) []Edge { return c.pred[id] }

// Visits returns how many times block id was entered by the traces behind
// the graph. Always zero for static CFGs.
func (c *CFG) Visits(id int) uint64 { return c.visits[id] }

// Gas returns the summed gas cost of the trace steps executed in block id.
func (c *CFG) Gas(id int) uint64 { return c.gas[id] }

// EntryCounts returns, per block id, how many executions started there.
func (c *CFG) EntryCounts() map[int]uint64 {
	out := make(map[int]uint64, len(c.entries))
	for id, n := range c.entries {
		out[id] = n
	}
	return out
}

// TotalWeight sums the weights of all edges.
func (c *CFG) TotalWeight() uint64 {
	var sum uint64
	for _, e := range c.edgeList {
		sum += e.Weight
	}
	return sum
}

// Unresolved returns the constant jumps whose destination is not a valid
// block start, ordered by block offset.
func (c *CFG) Unresolved() []*BuildError {
	out := make([]*BuildError, 0, len(c.unresolved))
	for _, id := range c.nodeList {
		if err, ok := c.unresolved[id]; ok {
			out = append(out, err)
		}
	}
	return out
}

// IsUnresolved reports whether block id carries an unresolved static target.
func (c *CFG) IsUnresolved(id int) bool {
	_, ok := c.unresolved[id]
	return ok
}

// DynamicJumps returns the ids of blocks whose jump destination is computed
// at runtime and therefore has no edge in a static CFG.
func (c *CFG) DynamicJumps() []int { return append([]int(nil), c.dynamic...) }

// Equal reports whether two CFGs have the same nodes, edges, weights, visits
// and entry.
func (c *CFG) Equal(o *CFG) bool {
	if c.CodeHash() != o.CodeHash() || c.entry != o.entry {
		return false
	}
	if len(c.nodes) != len(o.nodes) || len(c.edges) != len(o.edges) {
		return false
	}
	for id := range c.nodes {
		if !o.Contains(id) || c.visits[id] != o.visits[id] {
			return false
		}
	}
	for k, w := range c.edges {
		if ow, ok := o.edges[k]; !ok || ow != w {
			return false
		}
	}
	return true
}
