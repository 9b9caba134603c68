// evmcfg reconstructs control-flow graphs of EVM contracts from bytecode
// and from transaction traces.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/bnb-chain/evmcfg/core/cfg"
	evmlog "github.com/bnb-chain/evmcfg/log"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var app = newApp()

// logCloser releases the log file sink, if one was opened.
var logCloser io.Closer

func newApp() *cli.App {
	return &cli.App{
		Name:  "evmcfg",
		Usage: "control-flow graphs of EVM bytecode and transaction traces",
		Flags: globalFlags,
		Commands: []*cli.Command{
			staticCommand,
			txCommand,
			contractCommand,
			filterCommand,
			dumpConfigCommand,
		},
		Before: func(ctx *cli.Context) error {
			if err := setupLogging(ctx); err != nil {
				return err
			}
			setupMetrics(ctx)
			return nil
		},
		After: func(ctx *cli.Context) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) error {
	var (
		out      io.Writer = os.Stderr
		useColor           = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	)
	if useColor {
		out = colorable.NewColorableStderr()
	}
	if file := ctx.String(logFileFlag.Name); file != "" {
		useColor = false
		if ctx.Bool(logRotateFlag.Name) {
			lj := &lumberjack.Logger{
				Filename:   file,
				MaxSize:    ctx.Int(logMaxSizeFlag.Name),
				MaxBackups: 10,
				Compress:   true,
			}
			out, logCloser = lj, lj
		} else {
			w, err := evmlog.NewAsyncFileWriter(file, 10000, ctx.Uint(logRotateHoursFlag.Name))
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			out, logCloser = w, w
		}
	}
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	var handler slog.Handler
	if ctx.Bool(logJSONFlag.Name) {
		handler = log.JSONHandlerWithLevel(out, level)
	} else {
		handler = log.NewTerminalHandlerWithLevel(out, level, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
	if ctx.Int(verbosityFlag.Name) >= 4 {
		cfg.EnableDebugLogs(true)
	}
	return nil
}

// setupMetrics serves the registry for Prometheus. Meters only record when
// the process was started with --metrics, which the metrics package detects
// on its own before any meter is registered.
func setupMetrics(ctx *cli.Context) {
	if !ctx.Bool(metricsEnabledFlag.Name) {
		return
	}
	addr := ctx.String(metricsAddrFlag.Name)
	log.Info("Starting metrics server", "addr", fmt.Sprintf("http://%s/debug/metrics/prometheus", addr))
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", prometheus.Handler(metrics.DefaultRegistry))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server failed", "err", err)
		}
	}()
}
