// Package provider fetches the bytecode and execution traces the analyzer
// works on from an Ethereum JSON-RPC endpoint.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"
)

// ErrNoTrace is returned when the node answers debug_traceTransaction with
// an empty result.
var ErrNoTrace = errors.New("node returned no trace")

// TxInfo is what the analyzer needs to know about a transaction besides its
// trace.
type TxInfo struct {
	Hash        common.Hash
	To          *common.Address // nil for contract creation
	Created     common.Address  // deployed contract of a creation transaction
	Input       []byte          // call data, the init code of a creation
	BlockNumber *big.Int
	Status      uint64
}

// Creation reports whether the transaction deployed a contract.
func (tx *TxInfo) Creation() bool { return tx.To == nil }

// Provider supplies bytecode and traces. Implementations do their own
// retrying and caching; callers do neither.
type Provider interface {
	Code(ctx context.Context, addr common.Address, block *big.Int) ([]byte, error)
	Trace(ctx context.Context, tx common.Hash) (*trace.Result, error)
	Transaction(ctx context.Context, tx common.Hash) (*TxInfo, error)
}

// RPC is a Provider backed by a node exposing the eth and debug namespaces.
type RPC struct {
	client       *rpc.Client
	eth          *ethclient.Client
	traceTimeout time.Duration
}

// Dial connects to rawurl (http, ws or ipc).
func Dial(ctx context.Context, rawurl string, traceTimeout time.Duration) (*RPC, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return NewRPC(c, traceTimeout), nil
}

func NewRPC(c *rpc.Client, traceTimeout time.Duration) *RPC {
	return &RPC{client: c, eth: ethclient.NewClient(c), traceTimeout: traceTimeout}
}

func (p *RPC) Close() { p.client.Close() }

// Code returns the code at addr as of block, the latest block if nil.
func (p *RPC) Code(ctx context.Context, addr common.Address, block *big.Int) ([]byte, error) {
	code, err := p.eth.CodeAt(ctx, addr, block)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode %s: %w", addr.Hex(), err)
	}
	return code, nil
}

type structLoggerConfig struct {
	EnableMemory     bool   `json:"enableMemory"`
	DisableStack     bool   `json:"disableStack"`
	DisableStorage   bool   `json:"disableStorage"`
	EnableReturnData bool   `json:"enableReturnData"`
	Timeout          string `json:"timeout,omitempty"`
}

// Trace replays tx with the struct logger. Memory and storage snapshots are
// not requested.
func (p *RPC) Trace(ctx context.Context, tx common.Hash) (*trace.Result, error) {
	config := structLoggerConfig{DisableStorage: true}
	if p.traceTimeout > 0 {
		config.Timeout = p.traceTimeout.String()
	}
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, "debug_traceTransaction", tx, config); err != nil {
		return nil, fmt.Errorf("debug_traceTransaction %s: %w", tx.TerminalString(), err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: %s", ErrNoTrace, tx.Hex())
	}
	return trace.DecodeStructLogs(raw)
}

// Transaction looks up the transaction and its receipt concurrently.
func (p *RPC) Transaction(ctx context.Context, hash common.Hash) (*TxInfo, error) {
	info := &TxInfo{Hash: hash}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tx, _, err := p.eth.TransactionByHash(gctx, hash)
		if err != nil {
			return fmt.Errorf("eth_getTransactionByHash %s: %w", hash.TerminalString(), err)
		}
		info.To = tx.To()
		info.Input = tx.Data()
		return nil
	})
	g.Go(func() error {
		receipt, err := p.eth.TransactionReceipt(gctx, hash)
		if err != nil {
			return fmt.Errorf("eth_getTransactionReceipt %s: %w", hash.TerminalString(), err)
		}
		info.BlockNumber = receipt.BlockNumber
		info.Created = receipt.ContractAddress
		info.Status = receipt.Status
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}
