package cfg

import (
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Package-wide switch for verbose builder logs. Off by default so that bulk
// analysis of many contracts stays quiet.
var debugLogsEnabled = false

func init() {
	if v := os.Getenv("EVMCFG_DEBUG"); v == "1" || v == "true" {
		debugLogsEnabled = true
	}
}

// EnableDebugLogs toggles verbose logging of segmentation and CFG builds.
func EnableDebugLogs(on bool) { debugLogsEnabled = on }

func DebugLogsEnabled() bool { return debugLogsEnabled }

func debugWarn(msg string, ctx ...interface{}) {
	if debugLogsEnabled {
		ethlog.Warn(msg, ctx...)
	}
}

func debugInfo(msg string, ctx ...interface{}) {
	if debugLogsEnabled {
		ethlog.Info(msg, ctx...)
	}
}
