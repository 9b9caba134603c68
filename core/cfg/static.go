package cfg

import (
	"time"
)

// BuildStatic adds every statically known edge to the block set: the
// fallthrough into the next block and constant JUMP/JUMPI destinations.
// All blocks are nodes, reachable or not. A constant destination that is not
// a JUMPDEST block start is recorded as unresolved and its edge omitted.
func BuildStatic(bs *BlockSet) *CFG {
	start := time.Now()
	defer staticBuildTimer.UpdateSince(start)

	c := newCFG(KindStatic, bs)
	for _, b := range bs.Blocks() {
		c.addNode(b.ID)
	}
	if bs.Len() > 0 {
		c.entry = 0
	}
	for _, b := range bs.Blocks() {
		switch b.Terminator {
		case TermFallthrough:
			c.linkFallthrough(b)
		case TermJump:
			c.linkStatic(b)
		case TermJumpI:
			c.linkStatic(b)
			c.linkFallthrough(b)
		case TermJumpDynamic:
			c.dynamic = append(c.dynamic, b.ID)
		}
	}
	staticBuiltCounter.Inc(1)
	if len(c.unresolved) > 0 {
		debugWarn("Static CFG has unresolved jump targets", "hash", bs.Hash(), "count", len(c.unresolved))
	}
	return c.freeze()
}

func (c *CFG) linkFallthrough(b *BasicBlock) {
	if next, ok := c.blocks.BlockAt(b.End); ok {
		c.addEdge(b.ID, next.ID, EdgeFallthrough, 0)
	}
}

func (c *CFG) linkStatic(b *BasicBlock) {
	if offset, ok := b.StaticTarget(); ok {
		if dest, ok := c.blocks.isJumpTarget(offset); ok {
			c.addEdge(b.ID, dest.ID, EdgeStaticJump, 0)
			return
		}
	}
	c.unresolved[b.ID] = &BuildError{
		Kind:     ErrInvalidJumpTarget,
		CodeHash: c.blocks.Hash(),
		Offset:   b.Last().Offset,
		Step:     -1,
		Detail:   "destination " + b.target.Hex(),
	}
}
