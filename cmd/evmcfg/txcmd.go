package main

import (
	"errors"
	"fmt"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/bnb-chain/evmcfg/core/cfgdb"
	"github.com/bnb-chain/evmcfg/core/pipeline"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	txCommand = &cli.Command{
		Action:    txCFG,
		Name:      "tx",
		Usage:     "Build the executed CFG of every call frame of transactions",
		ArgsUsage: "<txHash> [txHash...]",
		Description: `
The tx command fetches each transaction's struct-log trace from the node at
--rpc, splits it into call frames and replays every frame over the static CFG
of the code it ran. With --out, one file per frame is written to that
directory. With --datadir, the frames are added to the stored aggregates.`,
	}
	contractCommand = &cli.Command{
		Action:    contractCFG,
		Name:      "contract",
		Usage:     "Aggregate the executed CFGs of one contract over transactions",
		ArgsUsage: "<txHash> [txHash...]",
		Flags:     []cli.Flag{addressFlag},
		Description: `
The contract command merges the frames that ran the code at --address across
the given transactions into one weighted graph and reports how much of the
static CFG they cover. With --datadir, the result includes every transaction
stored by earlier runs.`,
	}
)

func txCFG(ctx *cli.Context) error {
	hashes, err := parseHashes(ctx.Args().Slice())
	if err != nil {
		return err
	}
	dir, err := outDir(ctx)
	if err != nil {
		return err
	}
	e, err := newEnv(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	results, err := e.analyzer.Collect(ctx.Context, e.provider, hashes)
	if err != nil {
		return err
	}
	for _, res := range results {
		logActions(res)
		for _, s := range res.Segments {
			if s.Err != nil {
				log.Warn("Skipped call frame", "tx", res.TxHash, "frame", s.Segment.Frame, "address", s.Segment.Address, "err", s.Err)
				continue
			}
			path := ""
			if dir != "" {
				path = segmentFile(dir, res.TxHash, s.Segment.Frame, s.Segment.Address, e.extension())
			}
			title := fmt.Sprintf("%s frame %d %s", res.TxHash.TerminalString(), s.Segment.Frame, s.Segment.Address.Hex())
			if err := e.write(ctx, path, title, s.CFG); err != nil {
				return err
			}
		}
	}
	if e.db != nil {
		if _, err := pipeline.Persist(e.db, results); err != nil {
			return err
		}
	}
	return nil
}

func logActions(res *pipeline.TxResult) {
	for _, f := range res.Flows {
		blocks := make([]int, len(f.Sites))
		for i, site := range f.Sites {
			blocks[i] = site.Block
		}
		log.Info("Asset flow", "tx", res.TxHash, "order", f.Order, "kind", f.Kind, "token", f.Token,
			"from", f.From, "to", f.To, "amount", f.Amount, "blocks", blocks)
	}
}

func contractCFG(ctx *cli.Context) error {
	if !ctx.IsSet(addressFlag.Name) {
		return errors.New("--address is required")
	}
	addr, err := parseAddress(ctx.String(addressFlag.Name))
	if err != nil {
		return err
	}
	hashes, err := parseHashes(ctx.Args().Slice())
	if err != nil {
		return err
	}
	e, err := newEnv(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	results, err := e.analyzer.Collect(ctx.Context, e.provider, hashes)
	if err != nil {
		return err
	}
	agg, err := pipeline.AggregateAddress(results, addr)
	if err != nil {
		return fmt.Errorf("%s: %w", addr.Hex(), err)
	}
	if e.db != nil {
		if agg, err = persisted(e.db, results, agg); err != nil {
			return err
		}
	}
	static, err := e.analyzer.Static(agg.BlockSet().Code())
	if err != nil {
		return err
	}
	cov, err := cfg.CoverageOf(static, agg)
	if err != nil {
		return err
	}
	log.Info("Aggregated contract", "address", addr, "hash", agg.CodeHash(), "blocks", agg.NumBlocks(),
		"weight", agg.TotalWeight(), "coverage", fmt.Sprintf("%.1f%%", 100*cov.Ratio()),
		"untaken", len(cov.Untaken), "resolved", len(cov.Resolved))

	title := fmt.Sprintf("%s (%d txs)", addr.Hex(), len(hashes))
	return e.write(ctx, ctx.String(outFlag.Name), title, agg)
}

// persisted stores results and returns the stored aggregate of agg's code,
// which includes earlier runs.
func persisted(db *cfgdb.DB, results []*pipeline.TxResult, agg *cfg.CFG) (*cfg.CFG, error) {
	stored, err := pipeline.Persist(db, results)
	if err != nil {
		return nil, err
	}
	if c, ok := stored[agg.CodeHash()]; ok {
		return c, nil
	}
	return db.Aggregate(agg.CodeHash())
}
