package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/bnb-chain/evmcfg/core/cfgdb"
	"github.com/bnb-chain/evmcfg/core/pipeline"
	"github.com/bnb-chain/evmcfg/eth/provider"
	"github.com/bnb-chain/evmcfg/render"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// env bundles what every analysis command sets up from the configuration.
type env struct {
	config   evmcfgConfig
	analyzer *pipeline.Analyzer
	provider provider.Provider
	db       *cfgdb.DB
	closers  []func()
}

func newEnv(ctx *cli.Context, needRPC bool) (*env, error) {
	config, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	e := &env{config: config}
	e.analyzer, err = pipeline.New(config.Pipeline, config.slots())
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, e.analyzer.Close)

	if needRPC {
		rpc, err := provider.Dial(ctx.Context, config.RPC.URL, config.RPC.TraceTimeout)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("dial %s: %w", config.RPC.URL, err)
		}
		e.closers = append(e.closers, rpc.Close)
		var p provider.Provider = rpc
		if config.RPC.RateLimit > 0 {
			p = provider.NewLimited(p, float64(config.RPC.RateLimit), config.RPC.Burst)
		}
		if config.RPC.CodeCacheMB > 0 {
			p = provider.NewCached(p, config.RPC.CodeCacheMB*1024*1024)
		}
		e.provider = p
	}
	if config.DB.Dir != "" {
		e.db, err = cfgdb.Open(config.DB.Dir, config.DB.Cache, config.DB.Handles, false)
		if err != nil {
			e.close()
			return nil, err
		}
		e.closers = append(e.closers, func() { e.db.Close() })
	}
	return e, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func (e *env) renderer(title string, tags map[int][]annotate.Match) (render.Renderer, error) {
	opts := render.Options{Title: title, Fold: e.config.Render.Fold, Tags: tags}
	r, err := render.New(e.config.Render.Format, opts)
	if err != nil {
		return nil, err
	}
	if d, ok := r.(*render.DOT); ok {
		d.RankDir = e.config.Render.RankDir
	}
	return r, nil
}

// write renders c to path, or to the app writer when path is empty.
func (e *env) write(ctx *cli.Context, path, title string, c *cfg.CFG) error {
	r, err := e.renderer(title, e.analyzer.Tags(c))
	if err != nil {
		return err
	}
	if path == "" {
		return r.Render(ctx.App.Writer, c)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := r.Render(f, c); err != nil {
		return err
	}
	log.Info("Wrote graph", "file", path, "blocks", c.NumBlocks(), "edges", c.NumEdges())
	return f.Close()
}

func (e *env) extension() string {
	switch strings.ToLower(e.config.Render.Format) {
	case "json":
		return ".json"
	case "table":
		return ".txt"
	}
	return ".dot"
}

// outDir returns the --out directory, creating it, or "" for stdout.
func outDir(ctx *cli.Context) (string, error) {
	dir := ctx.String(outFlag.Name)
	if dir == "" {
		return "", nil
	}
	return dir, os.MkdirAll(dir, 0o755)
}

func parseHashes(args []string) ([]common.Hash, error) {
	if len(args) == 0 {
		return nil, errors.New("no transaction hashes given")
	}
	out := make([]common.Hash, len(args))
	for i, a := range args {
		b := common.FromHex(a)
		if len(b) != common.HashLength {
			return nil, fmt.Errorf("invalid transaction hash %q", a)
		}
		out[i] = common.BytesToHash(b)
	}
	return out, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// readHexFile reads hex-encoded bytes, ignoring whitespace and a 0x prefix.
func readHexFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return decodeHex(string(raw))
}

func decodeHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		return nil, fmt.Errorf("hex string has odd length: %d", len(s))
	}
	b := common.FromHex(s)
	if len(b)*2 != len(s) {
		return nil, errors.New("invalid hex string")
	}
	return b, nil
}

func segmentFile(dir string, tx common.Hash, frame int, addr common.Address, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%03d_%s%s", tx.Hex()[:10], frame, addr.Hex()[:10], ext))
}
