package provider

import (
	"context"
	"math/big"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/time/rate"
)

var (
	codeHitMeter  = metrics.NewRegisteredMeter("provider/code/hit", nil)
	codeMissMeter = metrics.NewRegisteredMeter("provider/code/miss", nil)
)

// Cached remembers code fetched at a fixed block. Lookups of the latest
// block always go to the wrapped provider.
type Cached struct {
	Provider
	codes *fastcache.Cache
}

// NewCached wraps p with a code cache of roughly maxBytes.
func NewCached(p Provider, maxBytes int) *Cached {
	return &Cached{Provider: p, codes: fastcache.New(maxBytes)}
}

func (c *Cached) Code(ctx context.Context, addr common.Address, block *big.Int) ([]byte, error) {
	if block == nil {
		return c.Provider.Code(ctx, addr, nil)
	}
	key := append(addr.Bytes(), block.Bytes()...)
	if code, ok := c.codes.HasGet(nil, key); ok {
		codeHitMeter.Mark(1)
		return code, nil
	}
	codeMissMeter.Mark(1)
	code, err := c.Provider.Code(ctx, addr, block)
	if err != nil {
		return nil, err
	}
	c.codes.Set(key, code)
	return code, nil
}

// Limited caps the request rate against the wrapped provider. Every method
// waits for a token and fails if ctx ends first.
type Limited struct {
	p       Provider
	limiter *rate.Limiter
}

// NewLimited allows perSecond requests with bursts of burst.
func NewLimited(p Provider, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{p: p, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Limited) Code(ctx context.Context, addr common.Address, block *big.Int) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Code(ctx, addr, block)
}

func (l *Limited) Trace(ctx context.Context, tx common.Hash) (*trace.Result, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Trace(ctx, tx)
}

func (l *Limited) Transaction(ctx context.Context, tx common.Hash) (*TxInfo, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.Transaction(ctx, tx)
}
