package pool

import (
	"runtime"

	"github.com/kestrelio/coro/metrics"
	"go.uber.org/zap"
)

// config holds Pool configuration assembled by the functional options in
// options.go.
type config struct {
	// Workers is the number of worker goroutines. Zero means dynamic:
	// resolved at New time to runtime.GOMAXPROCS(0).
	// Default: 0 (dynamic)
	Workers int

	// Fixed additionally gates Schedule through a semaphore sized to
	// Workers, so at most that many Schedule calls wait on their
	// continuation at once. Handles enqueued with Resume or ResumeAll do
	// not take from the semaphore.
	// Default: false
	Fixed bool

	Logger   *zap.Logger
	Provider metrics.Provider
}

func defaultConfig() config {
	return config{
		Workers:  0,
		Fixed:    false,
		Logger:   zap.NewNop(),
		Provider: metrics.NewNoopProvider(),
	}
}

func resolveWorkerCount(cfg config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
