package provider

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Memory is a Provider over preloaded data, used for offline analysis of
// saved traces and in tests. Code is not versioned by block.
type Memory struct {
	mu     sync.RWMutex
	codes  map[common.Address][]byte
	traces map[common.Hash]*trace.Result
	txs    map[common.Hash]*TxInfo
}

func NewMemory() *Memory {
	return &Memory{
		codes:  make(map[common.Address][]byte),
		traces: make(map[common.Hash]*trace.Result),
		txs:    make(map[common.Hash]*TxInfo),
	}
}

func (m *Memory) AddCode(addr common.Address, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[addr] = common.CopyBytes(code)
}

// AddTransaction registers a transaction together with its trace.
func (m *Memory) AddTransaction(info *TxInfo, res *trace.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[info.Hash] = info
	m.traces[info.Hash] = res
}

// Code returns the registered code; unknown accounts have empty code, as
// they would on chain.
func (m *Memory) Code(_ context.Context, addr common.Address, _ *big.Int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.codes[addr], nil
}

func (m *Memory) Trace(_ context.Context, tx common.Hash) (*trace.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.traces[tx]
	if !ok || res == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTrace, tx.Hex())
	}
	return res, nil
}

func (m *Memory) Transaction(_ context.Context, tx common.Hash) (*TxInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.txs[tx]
	if !ok {
		return nil, ethereum.NotFound
	}
	return info, nil
}
