package cfg

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 4096

// Cache keeps the static CFG of recently seen bytecode, keyed by code hash.
// Executed and aggregated CFGs of the same code share the cached BlockSet.
type Cache struct {
	static *lru.Cache[common.Hash, *CFG]
	group  singleflight.Group
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{static: lru.NewCache[common.Hash, *CFG](size)}
}

// Static returns the static CFG of code, building and caching it on a miss.
// Concurrent misses for the same code build once.
func (c *Cache) Static(code []byte) (*CFG, error) {
	hash := crypto.Keccak256Hash(code)
	if g, ok := c.static.Get(hash); ok {
		cacheHitCounter.Inc(1)
		return g, nil
	}
	cacheMissCounter.Inc(1)
	v, err, _ := c.group.Do(hash.Hex(), func() (interface{}, error) {
		if g, ok := c.static.Get(hash); ok {
			return g, nil
		}
		bs, err := NewBlockSet(code)
		if err != nil {
			return nil, err
		}
		g := BuildStatic(bs)
		c.static.Add(hash, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CFG), nil
}

// Lookup returns a cached static CFG without building one.
func (c *Cache) Lookup(hash common.Hash) (*CFG, bool) { return c.static.Get(hash) }

func (c *Cache) Remove(hash common.Hash) { c.static.Remove(hash) }

func (c *Cache) Len() int { return c.static.Len() }
