package cfg

// Chain is a run of blocks where control can only flow from one to the next:
// every block but the last has a single successor, which in turn has that
// block as its only predecessor.
type Chain struct {
	Blocks []int
}

func (ch Chain) Head() int { return ch.Blocks[0] }

func (ch Chain) Tail() int { return ch.Blocks[len(ch.Blocks)-1] }

// Folded reports whether the chain merges more than one block.
func (ch Chain) Folded() bool { return len(ch.Blocks) > 1 }

// FoldLinearChains partitions the nodes of c into maximal linear chains, in
// order of their head's start offset. Renderers use it to collapse
// straight-line paths into a single node; c itself is not changed.
func FoldLinearChains(c *CFG) []Chain {
	var (
		chains []Chain
		seen   = make(map[int]bool, len(c.nodeList))
	)
	walk := func(head int) {
		chain := Chain{Blocks: []int{head}}
		seen[head] = true
		for cur := head; ; {
			next, ok := c.soleSuccessor(cur)
			if !ok || seen[next] {
				break
			}
			if prev, ok := c.solePredecessor(next); !ok || prev != cur {
				break
			}
			chain.Blocks = append(chain.Blocks, next)
			seen[next] = true
			cur = next
		}
		chains = append(chains, chain)
	}
	// Heads first, so chains are not entered half-way.
	for _, id := range c.nodeList {
		if !seen[id] && !c.continuesChain(id) {
			walk(id)
		}
	}
	// Whatever is left sits on a cycle of single-entry blocks.
	for _, id := range c.nodeList {
		if !seen[id] {
			walk(id)
		}
	}
	return chains
}

func (c *CFG) continuesChain(id int) bool {
	prev, ok := c.solePredecessor(id)
	if !ok || prev == id {
		return false
	}
	next, ok := c.soleSuccessor(prev)
	return ok && next == id
}

func (c *CFG) soleSuccessor(id int) (int, bool) {
	return soleEndpoint(c.succ[id], func(e Edge) int { return e.To })
}

func (c *CFG) solePredecessor(id int) (int, bool) {
	return soleEndpoint(c.pred[id], func(e Edge) int { return e.From })
}

func soleEndpoint(edges []Edge, end func(Edge) int) (int, bool) {
	if len(edges) == 0 {
		return 0, false
	}
	id := end(edges[0])
	for _, e := range edges[1:] {
		if end(e) != id {
			return 0, false
		}
	}
	return id, true
}
