package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InvoiceSweeper removes invoice records older than the given age.
type InvoiceSweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int64, error)
}

// EventSweeper removes webhook events received before the cutoff.
type EventSweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupWorker periodically deletes invoice records and webhook events
// that have outlived the retention window.
type CleanupWorker struct {
	invoices InvoiceSweeper
	events   EventSweeper
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCleanupWorker creates a cleanup worker with the given retention
// window and sweep interval.
func NewCleanupWorker(invoices InvoiceSweeper, events EventSweeper, maxAge, interval time.Duration, logger *zap.Logger) *CleanupWorker {
	return &CleanupWorker{
		invoices: invoices,
		events:   events,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

func (w *CleanupWorker) Name() string {
	return "cleanup_worker"
}

// Start begins the periodic sweep loop
func (w *CleanupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	go w.run(runCtx, w.done)

	w.logger.Info("Cleanup worker started",
		zap.Duration("max_age", w.maxAge),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop halts the sweep loop and waits for the current pass to finish
func (w *CleanupWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
}

func (w *CleanupWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Sweep once at startup so stale rows from a previous run
	// do not linger for a full interval.
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	removed, err := w.invoices.Sweep(ctx, w.maxAge)
	if err != nil {
		w.logger.Error("Invoice sweep failed", zap.Error(err))
	} else if removed > 0 {
		w.logger.Info("Swept expired invoice records", zap.Int64("removed", removed))
	}

	if w.events == nil {
		return
	}

	cutoff := time.Now().UTC().Add(-w.maxAge)
	removed, err = w.events.Sweep(ctx, cutoff)
	if err != nil {
		w.logger.Error("Webhook event sweep failed", zap.Error(err))
	} else if removed > 0 {
		w.logger.Info("Swept expired webhook events", zap.Int64("removed", removed))
	}
}
