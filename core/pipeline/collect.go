package pipeline

import (
	"context"
	"sync"

	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/bnb-chain/evmcfg/eth/provider"
	evmlog "github.com/bnb-chain/evmcfg/log"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

var collectLog = &evmlog.EveryN{N: 20}

// Collect fetches and analyses txs through p, in order. Code is read as of
// each transaction's block.
func (a *Analyzer) Collect(ctx context.Context, p provider.Provider, txs []common.Hash) ([]*TxResult, error) {
	results := make([]*TxResult, 0, len(txs))
	for i, tx := range txs {
		res, err := a.CollectOne(ctx, p, tx)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
		log.Debug("Collected transaction", "tx", tx, "frames", len(res.Segments), "failed", len(res.Failed()))
		evmlog.InfoEvery(collectLog, "Collecting transactions", "done", i+1, "total", len(txs))
	}
	log.Info("Collected transactions", "count", len(results))
	return results, nil
}

// CollectOne fetches one transaction, its trace and the code of every
// contract it ran, then analyses it.
func (a *Analyzer) CollectOne(ctx context.Context, p provider.Provider, hash common.Hash) (*TxResult, error) {
	var (
		info  *provider.TxInfo
		steps []trace.Step
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info, err = p.Transaction(gctx, hash)
		return err
	})
	g.Go(func() error {
		tr, err := p.Trace(gctx, hash)
		if err != nil {
			return err
		}
		steps = tr.Steps
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	evmlog.InfoIf(info.Creation(), "Analysing contract creation", "tx", hash, "created", info.Created)
	segments, err := split(hash, info.To, steps)
	if err != nil {
		return nil, err
	}

	accounts := mapset.NewThreadUnsafeSet[common.Address]()
	for _, seg := range segments {
		if !seg.Create {
			accounts.Add(seg.Address)
		}
	}
	var (
		mu    sync.Mutex
		codes = make(map[common.Address][]byte, accounts.Cardinality())
	)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(a.config.Fetchers)
	for _, addr := range accounts.ToSlice() {
		addr := addr
		g.Go(func() error {
			code, err := p.Code(gctx, addr, info.BlockNumber)
			if err != nil {
				return err
			}
			mu.Lock()
			codes[addr] = code
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var input []byte
	if info.Creation() {
		input = info.Input
	}
	return a.analyze(hash, steps, segments, codes, input)
}
