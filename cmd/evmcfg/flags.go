package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

const (
	loggingCategory  = "LOGGING AND DEBUGGING"
	metricsCategory  = "METRICS"
	rpcCategory      = "RPC"
	analysisCategory = "ANALYSIS"
	outputCategory   = "OUTPUT"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}

	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: loggingCategory,
	}
	logJSONFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs with JSON",
		Category: loggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file instead of stderr",
		Category: loggingCategory,
	}
	logRotateFlag = &cli.BoolFlag{
		Name:     "log.rotate",
		Usage:    "Rotate the log file by size and compress old files instead of hourly rotation",
		Category: loggingCategory,
	}
	logMaxSizeFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Maximum size in MB of a log file before it is rotated (with --log.rotate)",
		Value:    100,
		Category: loggingCategory,
	}
	logRotateHoursFlag = &cli.UintFlag{
		Name:     "log.rotatehours",
		Usage:    "Hours covered by one log file (without --log.rotate)",
		Value:    24,
		Category: loggingCategory,
	}

	metricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: metricsCategory,
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Listen address of the Prometheus metrics endpoint",
		Value:    "127.0.0.1:6060",
		Category: metricsCategory,
	}

	rpcFlag = &cli.StringFlag{
		Name:     "rpc",
		Usage:    "Node endpoint with the eth and debug namespaces (http, ws or ipc)",
		Category: rpcCategory,
	}
	rpcTimeoutFlag = &cli.DurationFlag{
		Name:     "rpc.tracetimeout",
		Usage:    "Timeout the node applies to debug_traceTransaction",
		Value:    time.Minute,
		Category: rpcCategory,
	}
	rpcRateFlag = &cli.IntFlag{
		Name:     "rpc.rate",
		Usage:    "Maximum requests per second sent to the node (0 = unlimited)",
		Category: rpcCategory,
	}

	workersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "Goroutines building segment CFGs (0 = automatic)",
		Category: analysisCategory,
	}
	cacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Number of static CFGs kept in memory",
		Category: analysisCategory,
	}
	strictFlag = &cli.BoolFlag{
		Name:     "strict",
		Usage:    "Fail a transaction when one of its call frames does not match its bytecode",
		Category: analysisCategory,
	}
	matchFlag = &cli.StringFlag{
		Name:     "match",
		Usage:    "Comma separated opcodes to tag blocks with",
		Category: analysisCategory,
	}
	datadirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Directory of the aggregate database; aggregates accumulate across runs",
		Category: analysisCategory,
	}

	formatFlag = &cli.StringFlag{
		Name:     "format",
		Usage:    "Output format: dot, json or table",
		Category: outputCategory,
	}
	foldFlag = &cli.BoolFlag{
		Name:     "fold",
		Usage:    "Collapse linear chains of blocks into one node (dot)",
		Category: outputCategory,
	}
	outFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "Output file, or directory for commands writing several graphs (default: stdout)",
		Category: outputCategory,
	}
)

var globalFlags = []cli.Flag{
	configFileFlag,
	verbosityFlag,
	logJSONFlag,
	logFileFlag,
	logRotateFlag,
	logMaxSizeFlag,
	logRotateHoursFlag,
	metricsEnabledFlag,
	metricsAddrFlag,
	rpcFlag,
	rpcTimeoutFlag,
	rpcRateFlag,
	workersFlag,
	cacheFlag,
	strictFlag,
	matchFlag,
	datadirFlag,
	formatFlag,
	foldFlag,
	outFlag,
}
