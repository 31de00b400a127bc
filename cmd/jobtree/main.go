// Command jobtree runs a synthetic fan-out workload against the runtime
// and logs job lifecycle events. It exists to exercise the library end
// to end: policies, the pool scheduler, metrics, and cancellation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/jobtree"
	"github.com/baxromumarov/jobtree/chanx"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobtree:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runWorkload(ctx, cfg, logger); err != nil {
		logger.Error("workload failed", "err", err)
		os.Exit(1)
	}
	logger.Info("workload completed")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func runWorkload(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	policy := jobtree.FailFast
	if cfg.Policy == "supervise" {
		policy = jobtree.Supervise
	}

	pool := jobtree.NewPool(ctx, cfg.Workers)
	defer pool.Close()

	opts := []jobtree.Option{
		jobtree.WithPolicy(policy),
		jobtree.WithScheduler(pool),
		jobtree.WithOnEvent(func(e jobtree.JobEvent) {
			logger.Debug("job event",
				"kind", e.Kind.String(),
				"job", e.Job.Name,
				"id", e.Job.ID,
				"err", e.Err,
				"duration", e.Duration,
			)
		}),
		jobtree.WithOnChildFailure(func(info jobtree.JobInfo, err error) {
			logger.Warn("supervised job failed", "job", info.Name, "err", err)
		}),
		jobtree.WithOnMetrics(250*time.Millisecond, func(m jobtree.Metrics) {
			logger.Info("metrics",
				"spawned", m.TotalSpawned,
				"active", m.Active,
				"completed", m.Completed,
				"errored", m.Errored,
				"cancelled", m.Cancelled,
			)
		}),
	}

	err := jobtree.Run(ctx, func(sp jobtree.Spawner) {
		for i := range cfg.Jobs {
			name := fmt.Sprintf("work-%03d", i)
			sp.Go(name, func(ctx context.Context) error {
				return simulate(ctx, cfg.FailureRate)
			})
		}
	}, opts...)

	var agg *jobtree.AggregateError
	if errors.As(err, &agg) {
		logger.Error("aggregate failure",
			"primary", agg.Primary,
			"suppressed", len(agg.Secondary),
		)
	}
	return err
}

// simulate does a random amount of "work" at a cooperative suspension
// point and fails with the configured probability.
func simulate(ctx context.Context, failureRate float64) error {
	d := time.Duration(5+rand.IntN(45)) * time.Millisecond

	t := time.NewTimer(d)
	defer t.Stop()
	if _, _, err := chanx.Recv(ctx, t.C); err != nil {
		return err
	}

	if rand.Float64() < failureRate {
		return fmt.Errorf("simulated failure after %v", d)
	}
	return nil
}
