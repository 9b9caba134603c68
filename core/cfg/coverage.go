package cfg

// Coverage compares an executed or aggregated CFG with the static CFG of the
// same bytecode.
type Coverage struct {
	Blocks        int    // blocks in the static CFG
	VisitedBlocks int    // of which observed in the trace(s)
	Untaken       []Edge // static edges leaving a visited block that were never observed
	Resolved      []Edge // dynamic-jump edges discovered only through the trace(s)
}

// Ratio returns the fraction of static blocks that were visited.
func (cov *Coverage) Ratio() float64 {
	if cov.Blocks == 0 {
		return 0
	}
	return float64(cov.VisitedBlocks) / float64(cov.Blocks)
}

// CoverageOf reports how much of static was exercised by observed. Branches
// of a JUMPI that always went the same way show up in Untaken; they are
// reported rather than added to the observed graph.
func CoverageOf(static, observed *CFG) (*Coverage, error) {
	if static.CodeHash() != observed.CodeHash() {
		return nil, &BuildError{Kind: ErrCodeHashMismatch, CodeHash: static.CodeHash(), Step: -1}
	}
	cov := &Coverage{Blocks: static.NumBlocks(), VisitedBlocks: observed.NumBlocks()}
	for _, id := range observed.nodeList {
		for _, e := range static.succ[id] {
			if _, ok := observed.FindEdge(e.From, e.To); !ok {
				cov.Untaken = append(cov.Untaken, e)
			}
		}
	}
	for _, e := range observed.edgeList {
		if e.Kind == EdgeDynamicJump {
			cov.Resolved = append(cov.Resolved, e)
		}
	}
	return cov, nil
}
