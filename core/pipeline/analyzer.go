// Package pipeline ties the builders together: static CFGs cached by code
// hash, one executed CFG per call frame of a transaction, and aggregation of
// those per contract.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnb-chain/evmcfg/common/gopool"
	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/bnb-chain/evmcfg/core/trace"
	evmlog "github.com/bnb-chain/evmcfg/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// ErrNoCode marks a segment whose bytecode is unknown: init code run by a
// CREATE or CREATE2 inside the transaction, or an account the caller
// supplied no code for.
var ErrNoCode = errors.New("no bytecode for call frame")

var (
	txMeter          = metrics.NewRegisteredMeter("pipeline/tx", nil)
	txTimer          = metrics.NewRegisteredTimer("pipeline/tx/duration", nil)
	segmentFailMeter = metrics.NewRegisteredMeter("pipeline/segment/failed", nil)

	mismatchLog = &evmlog.EveryN{N: 100}
)

// SegmentResult is the outcome for one call frame. Exactly one of CFG and
// Err is set.
type SegmentResult struct {
	Segment  *trace.Segment
	CodeHash common.Hash
	CFG      *cfg.CFG
	Tags     map[int][]annotate.Match
	Err      error
}

// TxResult collects everything derived from one transaction trace.
type TxResult struct {
	TxHash    common.Hash
	Segments  []*SegmentResult
	Transfers []annotate.Transfer
	Writes    []annotate.StorageWrite
	Changes   []annotate.BalanceChange
	Flows     []annotate.Flow
}

// blockSets maps the code address of every built segment to its blocks.
func (r *TxResult) blockSets() func(common.Address) (*cfg.BlockSet, bool) {
	sets := make(map[common.Address]*cfg.BlockSet)
	for _, s := range r.Segments {
		if s.CFG != nil {
			sets[s.Segment.Address] = s.CFG.BlockSet()
		}
	}
	return func(addr common.Address) (*cfg.BlockSet, bool) {
		bs, ok := sets[addr]
		return bs, ok
	}
}

// CFGs returns the executed CFGs of the segments that were built.
func (r *TxResult) CFGs() []*cfg.CFG {
	var out []*cfg.CFG
	for _, s := range r.Segments {
		if s.CFG != nil {
			out = append(out, s.CFG)
		}
	}
	return out
}

// Failed returns the segments that could not be built.
func (r *TxResult) Failed() []*SegmentResult {
	var out []*SegmentResult
	for _, s := range r.Segments {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Analyzer builds and caches CFGs. It is safe for concurrent use.
type Analyzer struct {
	config  Config
	cache   *cfg.Cache
	pool    *gopool.Pool
	matcher *annotate.Matcher
	slots   annotate.SlotMap
}

// New creates an analyzer. slots may be nil.
func New(config Config, slots annotate.SlotMap) (*Analyzer, error) {
	config.sanitize()
	matcher, unknown := annotate.MatcherFromNames(config.Match)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown opcodes in match list: %v", unknown)
	}
	workers := config.Workers
	if workers <= 0 {
		workers = gopool.Threads(1 << 16)
	}
	pool, err := gopool.New(workers)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = annotate.NoSlots
	}
	log.Debug("Created analyzer", "workers", pool.Cap(), "cache", config.CacheSize, "match", matcher.Names())
	return &Analyzer{
		config:  config,
		cache:   cfg.NewCache(config.CacheSize),
		pool:    pool,
		matcher: matcher,
		slots:   slots,
	}, nil
}

// Close releases the worker pool.
func (a *Analyzer) Close() { a.pool.Release() }

func (a *Analyzer) Config() Config { return a.config }

// Static returns the static CFG of code from the cache, building it on a miss.
func (a *Analyzer) Static(code []byte) (*cfg.CFG, error) { return a.cache.Static(code) }

// Tags tags the blocks of c with the configured opcodes.
func (a *Analyzer) Tags(c *cfg.CFG) map[int][]annotate.Match { return annotate.TagBlocks(c, a.matcher) }

// Matcher returns the configured opcode matcher.
func (a *Analyzer) Matcher() *annotate.Matcher { return a.matcher }

// Transaction analyses the trace of tx, whose top frame runs the code at
// root. codes maps each account to the code it ran during the transaction.
// A nil root is a creation whose init code is unknown; see Creation.
func (a *Analyzer) Transaction(tx common.Hash, root *common.Address, steps []trace.Step, codes map[common.Address][]byte) (*TxResult, error) {
	segments, err := split(tx, root, steps)
	if err != nil {
		return nil, err
	}
	return a.analyze(tx, steps, segments, codes, nil)
}

// Creation analyses a contract-creation transaction. input is the
// transaction data: init code, then any constructor arguments.
func (a *Analyzer) Creation(tx common.Hash, input []byte, steps []trace.Step, codes map[common.Address][]byte) (*TxResult, error) {
	segments, err := trace.SplitCreation(tx, steps)
	if err != nil {
		return nil, err
	}
	return a.analyze(tx, steps, segments, codes, input)
}

func split(tx common.Hash, root *common.Address, steps []trace.Step) ([]*trace.Segment, error) {
	if root == nil {
		return trace.SplitCreation(tx, steps)
	}
	return trace.Split(tx, *root, steps)
}

func (a *Analyzer) analyze(tx common.Hash, steps []trace.Step, segments []*trace.Segment, codes map[common.Address][]byte, input []byte) (*TxResult, error) {
	start := time.Now()
	defer txTimer.UpdateSince(start)
	txMeter.Mark(1)

	res := &TxResult{TxHash: tx, Segments: make([]*SegmentResult, len(segments))}
	err := a.pool.ForEach(len(segments), func(i int) {
		res.Segments[i] = a.segment(segments[i], codes, input)
	})
	if err != nil {
		return nil, err
	}
	failed := res.Failed()
	if len(failed) > 0 {
		segmentFailMeter.Mark(int64(len(failed)))
		if a.config.StrictSegments {
			return nil, fmt.Errorf("tx %s frame %d: %w", tx.TerminalString(), failed[0].Segment.Frame, failed[0].Err)
		}
	}
	res.Transfers, res.Writes = annotate.Actions(steps, a.slots)
	res.Changes = annotate.BalanceChanges(steps, a.slots)
	res.Flows = annotate.Flows(res.Transfers, res.Changes)
	annotate.LinkBlocks(res.Flows, res.blockSets())

	log.Debug("Analyzed transaction", "tx", tx, "steps", len(steps), "segments", len(segments),
		"failed", len(failed), "elapsed", common.PrettyDuration(time.Since(start)))
	return res, nil
}

func (a *Analyzer) segment(seg *trace.Segment, codes map[common.Address][]byte, input []byte) *SegmentResult {
	out := &SegmentResult{Segment: seg}
	code := codes[seg.Address]
	if seg.Create {
		code = nil
		if seg.Frame == 0 {
			code = input
		}
	}
	if len(code) == 0 {
		out.Err = fmt.Errorf("%w: %s", ErrNoCode, seg)
		return out
	}
	static, err := a.static(code, seg.Create)
	if err != nil {
		out.Err = err
		return out
	}
	out.CodeHash = static.CodeHash()
	executed, err := cfg.BuildExecuted(static, seg.TxHash, seg.Trace())
	if err != nil {
		evmlog.WarnEvery(mismatchLog, "Segment does not match bytecode", "tx", seg.TxHash, "frame", seg.Frame, "address", seg.Address, "err", err)
		out.Err = err
		return out
	}
	out.CFG = executed
	out.Tags = a.Tags(executed)
	return out
}

// static returns the static CFG of code. Constructor arguments follow the
// init code of a creation and may decode as a truncated push; init code is
// then cut where that push starts.
func (a *Analyzer) static(code []byte, init bool) (*cfg.CFG, error) {
	c, err := a.cache.Static(code)
	var berr *cfg.BuildError
	if err != nil && init && errors.As(err, &berr) && errors.Is(err, cfg.ErrMalformedBytecode) {
		log.Debug("Cut init code before constructor arguments", "size", len(code), "cut", berr.Offset)
		return a.cache.Static(code[:berr.Offset])
	}
	return c, err
}

// Aggregate merges the executed CFGs of results per bytecode hash.
func Aggregate(results []*TxResult) map[common.Hash]*cfg.CFG {
	var all []*cfg.CFG
	for _, r := range results {
		all = append(all, r.CFGs()...)
	}
	return cfg.MergeAll(all)
}

// AggregateAddress merges the executed CFGs of every frame that ran the code
// at addr. It fails with cfg.ErrCodeHashMismatch if the code changed between
// the transactions, and with cfg.ErrNoCFG if addr never ran.
func AggregateAddress(results []*TxResult, addr common.Address) (*cfg.CFG, error) {
	var group []*cfg.CFG
	for _, r := range results {
		for _, s := range r.Segments {
			if s.CFG != nil && s.Segment.Address == addr {
				group = append(group, s.CFG)
			}
		}
	}
	return cfg.MergeParallel(group)
}
