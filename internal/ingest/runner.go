package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner drives incremental runs on a fixed interval.
type Runner struct {
	interval time.Duration
	service  *Service
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(interval time.Duration, service *Service, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		interval: interval,
		service:  service,
		logger:   logger,
	}
}

// Start begins the run loop. The first run fires immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("ingest runner started", "interval", r.interval)
	return nil
}

// Stop gracefully shuts down the runner, waiting for an in-flight run.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("ingest runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *Runner) runOnce() {
	start := time.Now()
	summary, err := r.service.RunIncremental(r.ctx)
	if err != nil {
		r.logger.Error("incremental run failed", "error", err, "duration", time.Since(start))
		return
	}
	r.logger.Info("incremental run complete",
		"account_id", summary.AccountID,
		"new_transactions", summary.NewTransactionRows,
		"portfolio_rows", summary.PortfolioRows,
		"duration", time.Since(start),
	)
}
