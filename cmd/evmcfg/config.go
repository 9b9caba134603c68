package main

import (
	"bufio"
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/pipeline"
	"github.com/ethereum/go-ethereum/common"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type rpcConfig struct {
	URL          string
	TraceTimeout time.Duration
	RateLimit    int // requests per second, 0 for no limit
	Burst        int
	CodeCacheMB  int
}

type renderConfig struct {
	Format  string
	Fold    bool
	RankDir string
}

type dbConfig struct {
	Dir     string // empty disables persistence
	Cache   int    // MB
	Handles int
}

// slotMapping declares a Solidity mapping(address => ...) whose entries
// belong to the listed holders, e.g. an ERC-20 balance table.
type slotMapping struct {
	Contract common.Address
	Slot     uint64
	Holders  []common.Address
}

type evmcfgConfig struct {
	Pipeline pipeline.Config
	RPC      rpcConfig
	Render   renderConfig
	DB       dbConfig
	Slots    []slotMapping `toml:",omitempty"`
}

func defaultConfig() evmcfgConfig {
	return evmcfgConfig{
		Pipeline: pipeline.DefaultConfig,
		RPC: rpcConfig{
			URL:          "http://127.0.0.1:8545",
			TraceTimeout: time.Minute,
			Burst:        16,
			CodeCacheMB:  64,
		},
		Render: renderConfig{Format: "dot", RankDir: "TB"},
		DB:     dbConfig{Cache: 64, Handles: 64},
	}
}

func loadConfig(file string, cfg *evmcfgConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the config file, if any, and applies flags on top.
func makeConfig(ctx *cli.Context) (evmcfgConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(rpcFlag.Name) {
		cfg.RPC.URL = ctx.String(rpcFlag.Name)
	}
	if ctx.IsSet(rpcTimeoutFlag.Name) {
		cfg.RPC.TraceTimeout = ctx.Duration(rpcTimeoutFlag.Name)
	}
	if ctx.IsSet(rpcRateFlag.Name) {
		cfg.RPC.RateLimit = ctx.Int(rpcRateFlag.Name)
	}
	if ctx.IsSet(workersFlag.Name) {
		cfg.Pipeline.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.IsSet(cacheFlag.Name) {
		cfg.Pipeline.CacheSize = ctx.Int(cacheFlag.Name)
	}
	if ctx.IsSet(strictFlag.Name) {
		cfg.Pipeline.StrictSegments = ctx.Bool(strictFlag.Name)
	}
	if ctx.IsSet(matchFlag.Name) {
		cfg.Pipeline.Match = splitList(ctx.String(matchFlag.Name))
	}
	if ctx.IsSet(formatFlag.Name) {
		cfg.Render.Format = ctx.String(formatFlag.Name)
	}
	if ctx.IsSet(foldFlag.Name) {
		cfg.Render.Fold = ctx.Bool(foldFlag.Name)
	}
	if ctx.IsSet(datadirFlag.Name) {
		cfg.DB.Dir = ctx.String(datadirFlag.Name)
	}
	return cfg, nil
}

func (c *evmcfgConfig) slots() annotate.SlotMap {
	if len(c.Slots) == 0 {
		return nil
	}
	slots := annotate.NewSlots()
	for _, m := range c.Slots {
		slots.AddMapping(m.Contract, common.BigToHash(new(big.Int).SetUint64(m.Slot)), m.Holders...)
	}
	return slots
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Export configuration values in a TOML format",
	Description: `Export configuration values in TOML format (to stdout by default).`,
}
