package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	a := newApp()
	a.Writer = &buf
	err := a.Run(append([]string{"evmcfg", "--verbosity", "0"}, args...))
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDumpConfig(t *testing.T) {
	out, err := runApp(t, "--workers", "3", "--match", "SSTORE, CALL", "--format", "json", "dumpconfig")
	require.NoError(t, err)
	assert.Contains(t, out, "Workers = 3")
	assert.Contains(t, out, `Match = ["SSTORE", "CALL"]`)
	assert.Contains(t, out, `Format = "json"`)

	// The dump loads back into the same configuration.
	var cfg evmcfgConfig
	require.NoError(t, loadConfig(writeFile(t, "config.toml", out), &cfg))
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, []string{"SSTORE", "CALL"}, cfg.Pipeline.Match)
	assert.Equal(t, time.Minute, cfg.RPC.TraceTimeout)
}

func TestLoadConfig(t *testing.T) {
	file := writeFile(t, "config.toml", `
[Pipeline]
CacheSize = 16
StrictSegments = true

[RPC]
URL = "ws://node:8546"

[[Slots]]
Contract = "0x1000000000000000000000000000000000000001"
Slot = 0
Holders = ["0xa11ce00000000000000000000000000000000000"]
`)
	cfg := defaultConfig()
	require.NoError(t, loadConfig(file, &cfg))
	assert.Equal(t, 16, cfg.Pipeline.CacheSize)
	assert.True(t, cfg.Pipeline.StrictSegments)
	assert.Equal(t, "ws://node:8546", cfg.RPC.URL)
	assert.Equal(t, 8, cfg.Pipeline.Fetchers)
	require.Len(t, cfg.Slots, 1)
	assert.NotNil(t, cfg.slots())

	bad := writeFile(t, "bad.toml", "[Pipeline]\nCacheSise = 1\n")
	err := loadConfig(bad, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CacheSise")

	// Flags win over the file.
	out, err := runApp(t, "--config", file, "--cache", "99", "dumpconfig")
	require.NoError(t, err)
	assert.Contains(t, out, "CacheSize = 99")
	assert.Contains(t, out, "StrictSegments = true")
}

func TestStaticCommand(t *testing.T) {
	out, err := runApp(t, "--format", "json", "static", "--code", "0x6003565b00")
	require.NoError(t, err)
	var graph struct {
		Blocks []json.RawMessage `json:"blocks"`
		Edges  []struct {
			Kind string `json:"kind"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &graph))
	assert.Len(t, graph.Blocks, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "STATIC_JUMP", graph.Edges[0].Kind)

	file := writeFile(t, "code.hex", "0x6003\n565b00\n")
	dot := filepath.Join(t.TempDir(), "out.dot")
	_, err = runApp(t, "--fold", "--out", dot, "static", "--code.file", file)
	require.NoError(t, err)
	data, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph CFG {"))
	assert.Contains(t, string(data), "B0..B1")

	out, err = runApp(t, "static", "--disasm", "--code", "6003565b00")
	require.NoError(t, err)
	assert.Contains(t, out, "JUMPDEST")

	_, err = runApp(t, "static")
	assert.Error(t, err)
	_, err = runApp(t, "static", "--code", "0x600")
	assert.Error(t, err)
}

const filterTraceJSON = `{"gas":50000,"failed":false,"returnValue":"","structLogs":[
 {"pc":0,"op":"SSTORE","gas":100,"gasCost":20000,"depth":1,"stack":["0x2a","0x1"]},
 {"pc":1,"op":"CALL","gas":80,"gasCost":100,"depth":1,
  "stack":["0x0","0x0","0x0","0x0","0x5","0xb0b0000000000000000000000000000000000000","0x1000"]},
 {"pc":0,"op":"STOP","gas":70,"gasCost":0,"depth":2,"stack":[]},
 {"pc":2,"op":"STOP","gas":60,"gasCost":0,"depth":1,"stack":[]}]}`

func TestFilterCommand(t *testing.T) {
	file := writeFile(t, "trace.json", filterTraceJSON)
	root := "0x1000000000000000000000000000000000000001"
	out, err := runApp(t, "filter", "--trace", file, "--root", root, "--address", root)
	require.NoError(t, err)
	assert.Contains(t, out, "SSTORE")
	assert.Contains(t, strings.ToLower(out), "to 0xb0b0000000000000000000000000000000000000 value 5")
	assert.Contains(t, out, "2 of 4 steps")

	out, err = runApp(t, "filter", "--trace", file, "--root", root, "--address", "0xb0b0000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 4 steps")
}

func TestDebugVerbosityEnablesBuilderLogs(t *testing.T) {
	t.Cleanup(func() { cfg.EnableDebugLogs(false) })
	cfg.EnableDebugLogs(false)

	a := newApp()
	a.Writer = io.Discard
	require.NoError(t, a.Run([]string{"evmcfg", "--verbosity", "4", "dumpconfig"}))
	assert.True(t, cfg.DebugLogsEnabled())
}
