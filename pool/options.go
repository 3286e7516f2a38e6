package pool

import (
	"github.com/kestrelio/coro/metrics"
	"go.uber.org/zap"
)

// Option configures a Pool. Use with New.
type Option func(*config)

// WithFixedWorkers selects a bounded pool of exactly n worker goroutines,
// with admission additionally gated by a semaphore sized n. n must be > 0.
func WithFixedWorkers(n int) Option {
	return func(c *config) {
		if n <= 0 {
			panic("pool: WithFixedWorkers requires n > 0")
		}
		c.Workers = n
		c.Fixed = true
	}
}

// WithDynamicWorkers selects runtime.GOMAXPROCS(0) worker goroutines with no
// additional admission gate beyond the FIFO queue. This is the default.
func WithDynamicWorkers() Option {
	return func(c *config) {
		c.Workers = 0
		c.Fixed = false
	}
}

// WithLogger attaches a zap logger used for panic-recovery and lifecycle
// diagnostics. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics attaches a metrics.Provider used to record queue depth,
// processed and panicked handle counts, and handle execution latency.
// Defaults to a no-op provider.
func WithMetrics(p metrics.Provider) Option {
	return func(c *config) {
		if p != nil {
			c.Provider = p
		}
	}
}
