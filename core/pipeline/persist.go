package pipeline

import (
	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/bnb-chain/evmcfg/core/cfgdb"
	evmlog "github.com/bnb-chain/evmcfg/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Persist adds the executed CFGs of results to the aggregates stored in db
// and returns the updated aggregates by code hash. A transaction that db has
// already counted for a bytecode is skipped for that bytecode, so replaying
// the same transactions leaves the store unchanged. A transaction listed more
// than once in results counts once.
func Persist(db *cfgdb.DB, results []*TxResult) (map[common.Hash]*cfg.CFG, error) {
	type group struct {
		txs  []common.Hash
		cfgs []*cfg.CFG
	}
	var (
		groups = make(map[common.Hash]*group)
		order  []common.Hash
		seen   = make(map[[2]common.Hash]bool)
		txs    = make(map[common.Hash]bool)
		skip   int
		dups   int
	)
	for _, r := range results {
		if txs[r.TxHash] {
			dups++
			continue
		}
		txs[r.TxHash] = true
		for _, s := range r.Segments {
			if s.CFG == nil {
				continue
			}
			pair := [2]common.Hash{s.CodeHash, r.TxHash}
			if db.Counted(s.CodeHash, r.TxHash) {
				skip++
				continue
			}
			g, ok := groups[s.CodeHash]
			if !ok {
				g = new(group)
				groups[s.CodeHash] = g
				order = append(order, s.CodeHash)
			}
			if !seen[pair] {
				seen[pair] = true
				g.txs = append(g.txs, r.TxHash)
			}
			g.cfgs = append(g.cfgs, s.CFG)
		}
	}
	out := make(map[common.Hash]*cfg.CFG, len(groups))
	for _, hash := range order {
		g := groups[hash]
		merged, err := db.Accumulate(g.txs, g.cfgs...)
		if err != nil {
			return nil, err
		}
		out[hash] = merged
	}
	evmlog.WarnIf(dups > 0, "Ignored repeated transactions", "count", dups)
	log.Info("Persisted aggregates", "contracts", len(out), "skipped", skip)
	return out, nil
}
