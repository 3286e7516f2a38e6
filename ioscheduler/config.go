package ioscheduler

import (
	"github.com/kestrelio/coro/metrics"
	"github.com/kestrelio/coro/pool"
	"go.uber.org/zap"
)

// ThreadStrategy controls who drives the event loop.
type ThreadStrategy int

const (
	// ThreadStrategySpawn runs the event loop on a dedicated goroutine.
	ThreadStrategySpawn ThreadStrategy = iota
	// ThreadStrategyManual requires the caller to drive the loop via
	// ProcessEvents.
	ThreadStrategyManual
)

// ExecutionStrategy controls where ready handles are resumed.
type ExecutionStrategy int

const (
	// ExecutionStrategyThroughputPool resumes ready handles on the embedded
	// worker pool.
	ExecutionStrategyThroughputPool ExecutionStrategy = iota
	// ExecutionStrategyInline resumes ready handles directly on the event
	// loop goroutine via the inline ready list.
	ExecutionStrategyInline
)

type config struct {
	ThreadStrategy    ThreadStrategy
	ExecutionStrategy ExecutionStrategy

	poolOpts    []pool.Option
	onThreadStart func()
	onThreadStop  func()

	Logger   *zap.Logger
	Provider metrics.Provider
}

func defaultConfig() config {
	return config{
		ThreadStrategy:    ThreadStrategySpawn,
		ExecutionStrategy: ExecutionStrategyThroughputPool,
		Logger:            zap.NewNop(),
		Provider:          metrics.NewNoopProvider(),
	}
}

// Option configures a Scheduler. Use with New.
type Option func(*config)

// WithThreadStrategy selects how the event loop is driven.
func WithThreadStrategy(s ThreadStrategy) Option {
	return func(c *config) { c.ThreadStrategy = s }
}

// WithExecutionStrategy selects where ready handles resume.
func WithExecutionStrategy(s ExecutionStrategy) Option {
	return func(c *config) { c.ExecutionStrategy = s }
}

// WithThreadPool configures the embedded worker pool used in
// ExecutionStrategyThroughputPool mode.
func WithThreadPool(opts ...pool.Option) Option {
	return func(c *config) { c.poolOpts = opts }
}

// WithOnThreadStart registers a hook invoked once, from the event loop
// goroutine, before it enters its first wait.
func WithOnThreadStart(fn func()) Option {
	return func(c *config) { c.onThreadStart = fn }
}

// WithOnThreadStop registers a hook invoked once, from the event loop
// goroutine, right before it exits.
func WithOnThreadStop(fn func()) Option {
	return func(c *config) { c.onThreadStop = fn }
}

// WithLogger attaches a zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics attaches a metrics.Provider. Defaults to a no-op provider.
func WithMetrics(p metrics.Provider) Option {
	return func(c *config) {
		if p != nil {
			c.Provider = p
		}
	}
}
