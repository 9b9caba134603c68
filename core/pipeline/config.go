package pipeline

import (
	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/cfg"
)

// Config tunes an Analyzer.
type Config struct {
	CacheSize int // static CFGs kept, by code hash
	Workers   int // 0 picks a size from the amount of work
	Fetchers  int // concurrent provider requests per transaction

	// StrictSegments fails the whole transaction when one of its segments
	// does not match its bytecode. Otherwise the segment is reported and
	// left out of aggregation.
	StrictSegments bool

	// Match lists the opcodes blocks are tagged for.
	Match []string
}

var DefaultConfig = Config{
	CacheSize: cfg.DefaultCacheSize,
	Fetchers:  8,
	Match:     annotate.DefaultMatcher().Names(),
}

func (c *Config) sanitize() {
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultConfig.CacheSize
	}
	if c.Fetchers <= 0 {
		c.Fetchers = DefaultConfig.Fetchers
	}
	if len(c.Match) == 0 {
		c.Match = DefaultConfig.Match
	}
}
