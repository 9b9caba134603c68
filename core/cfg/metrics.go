package cfg

import "github.com/ethereum/go-ethereum/metrics"

var (
	staticBuiltCounter     = metrics.NewRegisteredCounter("cfg/static/built", nil)
	staticBuildTimer       = metrics.NewRegisteredTimer("cfg/static/build", nil)
	traceSegmentsCounter   = metrics.NewRegisteredCounter("cfg/trace/segments", nil)
	traceMismatchCounter   = metrics.NewRegisteredCounter("cfg/trace/mismatch", nil)
	aggregateMergedCounter = metrics.NewRegisteredCounter("cfg/aggregate/merged", nil)

	cacheHitCounter  = metrics.NewRegisteredCounter("cfg/cache/hit", nil)
	cacheMissCounter = metrics.NewRegisteredCounter("cfg/cache/miss", nil)
)
