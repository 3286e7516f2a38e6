// Command corodemo is a smoke-test harness for ioscheduler.Scheduler: a TCP
// echo server whose accept loop and per-connection I/O are driven entirely
// through Scheduler.Poll rather than blocking net.Conn reads/writes. It
// exists to exercise the scheduler end to end, not as a step toward an
// HTTP/WS/RPC layer.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelio/coro/ioscheduler"
	"github.com/kestrelio/coro/metrics"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "address to listen on")
	metricsInterval := flag.Duration("metrics-interval", 10*time.Second, "how often to log a metrics snapshot")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Sugar().Infof(format, args...)
	})); err != nil {
		logger.Warn("corodemo: automaxprocs.Set failed, leaving GOMAXPROCS untouched", zap.Error(err))
	}

	provider := metrics.NewBasicProvider()
	sched, err := ioscheduler.New(
		ioscheduler.WithLogger(logger),
		ioscheduler.WithMetrics(provider),
	)
	if err != nil {
		logger.Fatal("corodemo: failed to construct scheduler", zap.Error(err))
	}

	ln, err := newListener(*addr)
	if err != nil {
		logger.Fatal("corodemo: failed to listen", zap.Error(err), zap.String("addr", *addr))
	}
	logger.Info("corodemo: listening", zap.String("addr", *addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &server{sched: sched, logger: logger}
	go srv.acceptLoop(ctx, ln)
	go logMetrics(ctx, logger, provider, *metricsInterval)

	<-ctx.Done()
	logger.Info("corodemo: shutting down")

	_ = ln.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("corodemo: scheduler shutdown error", zap.Error(err))
	}
}

func logMetrics(ctx context.Context, logger *zap.Logger, provider *metrics.BasicProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("corodemo: metrics snapshot",
				zap.Int64("polls_resumed", provider.Counter("ioscheduler.polls_resumed").(*metrics.BasicCounter).Snapshot()),
				zap.Int64("timeouts_fired", provider.Counter("ioscheduler.timeouts_fired").(*metrics.BasicCounter).Snapshot()),
				zap.Int64("active_suspensions", provider.UpDownCounter("ioscheduler.active_suspensions").(*metrics.BasicUpDownCounter).Snapshot()),
			)
		}
	}
}
