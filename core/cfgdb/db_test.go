package cfgdb

import (
	"errors"
	"testing"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 0: PUSH1 3, 2: JUMP, 3: JUMPDEST, 4: STOP
var jumpCode = common.FromHex("6003565b00")

func run(t *testing.T, tx common.Hash) *cfg.CFG {
	t.Helper()
	bs, err := cfg.NewBlockSet(jumpCode)
	require.NoError(t, err)
	g, err := cfg.BuildExecuted(cfg.BuildStatic(bs), tx, []cfg.TraceStep{
		{Index: 0, PC: 0, Op: cfg.PUSH1, GasCost: 3},
		{Index: 1, PC: 2, Op: cfg.JUMP, GasCost: 8},
		{Index: 2, PC: 3, Op: cfg.JUMPDEST, GasCost: 1},
		{Index: 3, PC: 4, Op: cfg.STOP},
	})
	require.NoError(t, err)
	return g
}

func TestAccumulate(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	tx1, tx2, tx3 := common.HexToHash("0x01"), common.HexToHash("0x02"), common.HexToHash("0x03")
	agg, err := db.Accumulate([]common.Hash{tx1, tx2}, run(t, tx1), run(t, tx2))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), agg.TotalWeight())

	hash := agg.CodeHash()
	assert.True(t, db.Counted(hash, tx1))
	assert.False(t, db.Counted(hash, tx3))
	code, err := db.Code(hash)
	require.NoError(t, err)
	assert.Equal(t, jumpCode, code)

	agg, err = db.Accumulate([]common.Hash{tx3}, run(t, tx3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), agg.TotalWeight())

	stored, err := db.Aggregate(hash)
	require.NoError(t, err)
	assert.True(t, agg.Equal(stored))
	assert.Equal(t, cfg.KindAggregated, stored.Kind())
	assert.Equal(t, uint64(3), stored.Visits(1))

	hashes, err := db.Hashes()
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{hash}, hashes)
}

func TestAggregateMissing(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	_, err := db.Aggregate(common.HexToHash("0xdead"))
	assert.True(t, errors.Is(err, ErrNotFound))

	hash, err := db.WriteCode(jumpCode)
	require.NoError(t, err)
	_, err = db.Aggregate(hash)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = db.Accumulate(nil)
	assert.True(t, errors.Is(err, cfg.ErrNoCFG))
}

func TestOpenDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, 16, 16, false)
	require.NoError(t, err)
	tx := common.HexToHash("0x01")
	_, err = db.Accumulate([]common.Hash{tx}, run(t, tx))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dir, 16, 16, true)
	require.NoError(t, err)
	defer db.Close()
	hashes, err := db.Hashes()
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	assert.True(t, db.Counted(hashes[0], tx))
}
