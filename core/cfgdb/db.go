// Package cfgdb persists aggregated CFGs by bytecode hash, so aggregation
// can continue across runs without counting a transaction twice.
package cfgdb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrNotFound is returned when no aggregate is stored for a code hash.
var ErrNotFound = errors.New("no stored aggregate")

var (
	codePrefix      = []byte("c") // codePrefix + code hash -> bytecode
	aggregatePrefix = []byte("g") // aggregatePrefix + code hash -> rlp(cfg.Snapshot)
	countedPrefix   = []byte("t") // countedPrefix + code hash + tx hash -> nil
)

func codeKey(hash common.Hash) []byte { return append(append([]byte{}, codePrefix...), hash.Bytes()...) }

func aggregateKey(hash common.Hash) []byte {
	return append(append([]byte{}, aggregatePrefix...), hash.Bytes()...)
}

func countedKey(hash, tx common.Hash) []byte {
	key := append(append([]byte{}, countedPrefix...), hash.Bytes()...)
	return append(key, tx.Bytes()...)
}

// DB stores bytecode and aggregates. Writes of one aggregate are atomic.
type DB struct {
	db ethdb.KeyValueStore
	mu sync.Mutex // serialises read-modify-write of aggregates
}

// Open opens or creates a leveldb store in dir.
func Open(dir string, cache, handles int, readonly bool) (*DB, error) {
	kv, err := leveldb.New(dir, cache, handles, "evmcfg/db/", readonly)
	if err != nil {
		return nil, err
	}
	log.Info("Opened CFG database", "dir", dir, "cache", common.StorageSize(cache*1024*1024), "readonly", readonly)
	return &DB{db: kv}, nil
}

// NewMemory returns a store that lives in memory only.
func NewMemory() *DB { return &DB{db: memorydb.New()} }

func (d *DB) Close() error { return d.db.Close() }

// WriteCode stores code under its hash.
func (d *DB) WriteCode(code []byte) (common.Hash, error) {
	hash := crypto.Keccak256Hash(code)
	return hash, d.db.Put(codeKey(hash), code)
}

// Code returns the bytecode stored for hash, nil if there is none.
func (d *DB) Code(hash common.Hash) ([]byte, error) {
	ok, err := d.db.Has(codeKey(hash))
	if err != nil || !ok {
		return nil, err
	}
	return d.db.Get(codeKey(hash))
}

// Counted reports whether tx already contributed to the aggregate of hash.
func (d *DB) Counted(hash, tx common.Hash) bool {
	ok, _ := d.db.Has(countedKey(hash, tx))
	return ok
}

// Aggregate loads the aggregate stored for hash.
func (d *DB) Aggregate(hash common.Hash) (*cfg.CFG, error) {
	code, err := d.Code(hash)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash.Hex())
	}
	bs, err := cfg.NewBlockSet(code)
	if err != nil {
		return nil, err
	}
	return d.aggregate(bs)
}

func (d *DB) aggregate(bs *cfg.BlockSet) (*cfg.CFG, error) {
	key := aggregateKey(bs.Hash())
	if ok, err := d.db.Has(key); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bs.Hash().Hex())
	}
	blob, err := d.db.Get(key)
	if err != nil {
		return nil, err
	}
	var snap cfg.Snapshot
	if err := rlp.DecodeBytes(blob, &snap); err != nil {
		return nil, fmt.Errorf("corrupt aggregate %s: %w", bs.Hash().Hex(), err)
	}
	return cfg.Restore(bs, &snap)
}

// Accumulate merges the CFGs contributed by txs into the stored aggregate of
// their bytecode and returns the new aggregate. Transactions already counted
// must be filtered out by the caller with Counted. All CFGs must share one
// code hash.
func (d *DB) Accumulate(txs []common.Hash, cfgs ...*cfg.CFG) (*cfg.CFG, error) {
	if len(cfgs) == 0 {
		return nil, cfg.ErrNoCFG
	}
	bs := cfgs[0].BlockSet()

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, err := d.aggregate(bs)
	switch {
	case err == nil:
		cfgs = append(cfgs, prev)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	merged, err := cfg.Merge(cfgs...)
	if err != nil {
		return nil, err
	}
	blob, err := rlp.EncodeToBytes(merged.Snapshot())
	if err != nil {
		return nil, err
	}
	batch := d.db.NewBatch()
	if prev == nil {
		if err := batch.Put(codeKey(bs.Hash()), bs.Code()); err != nil {
			return nil, err
		}
	}
	if err := batch.Put(aggregateKey(bs.Hash()), blob); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := batch.Put(countedKey(bs.Hash(), tx), nil); err != nil {
			return nil, err
		}
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	log.Debug("Stored aggregate", "hash", bs.Hash(), "txs", len(txs), "weight", merged.TotalWeight())
	return merged, nil
}

// Hashes lists the code hashes that have a stored aggregate.
func (d *DB) Hashes() ([]common.Hash, error) {
	it := d.db.NewIterator(aggregatePrefix, nil)
	defer it.Release()

	var out []common.Hash
	for it.Next() {
		key := it.Key()
		if len(key) != len(aggregatePrefix)+common.HashLength {
			continue
		}
		out = append(out, common.BytesToHash(key[len(aggregatePrefix):]))
	}
	return out, it.Error()
}
