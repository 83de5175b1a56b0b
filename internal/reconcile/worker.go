// Package reconcile runs the background sweep that keeps the aggregate
// cache honest against the event log.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"japa/internal/ledger"
)

// Sweeper is the facade surface the worker drives.
type Sweeper interface {
	ReconcileAll(ctx context.Context) (ledger.ReconcileReport, error)
}

// Worker replays every profile on a fixed interval. Mismatches are
// repaired by the sweep itself; the worker only schedules and reports.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

// NewWorker creates a reconcile worker.
func NewWorker(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{sweeper: sweeper, interval: interval, logger: logger}
}

// Run sweeps on the interval until ctx is cancelled. The first sweep waits
// one full interval so startup traffic is not competing with a replay.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()
	report, err := w.sweeper.ReconcileAll(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "reconcile sweep failed",
			"profiles_checked", report.ProfilesChecked,
			"error", err,
		)
		return
	}

	w.logger.InfoContext(ctx, "reconcile sweep finished",
		"profiles_checked", report.ProfilesChecked,
		"mismatches", report.Mismatches,
		"duration", time.Since(start),
	)
}
