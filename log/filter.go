package log

import (
	"sync/atomic"

	gethlog "github.com/ethereum/go-ethereum/log"
)

// EveryN lets one call in N through. A nil or zero EveryN lets everything
// through.
type EveryN struct {
	N       uint32
	counter atomic.Uint32
}

func (e *EveryN) Allow() bool {
	if e == nil || e.N == 0 {
		return true
	}
	return e.counter.Add(1)%e.N == 1 || e.N == 1
}

func InfoEvery(e *EveryN, msg string, ctx ...interface{}) {
	if e.Allow() {
		gethlog.Info(msg, ctx...)
	}
}

func WarnEvery(e *EveryN, msg string, ctx ...interface{}) {
	if e.Allow() {
		gethlog.Warn(msg, ctx...)
	}
}

func InfoIf(condition bool, msg string, ctx ...interface{}) {
	if condition {
		gethlog.Info(msg, ctx...)
	}
}

func WarnIf(condition bool, msg string, ctx ...interface{}) {
	if condition {
		gethlog.Warn(msg, ctx...)
	}
}
