// Package tracker provides the status transition API over the invoice store.
// It is the only component that mutates invoice records; HTTP boundaries
// translate requests into its named operations.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"go.uber.org/zap"
)

// InvoiceStore is the persistence contract the tracker operates on.
// The SQLite and in-memory repositories are interchangeable behind it.
type InvoiceStore interface {
	Insert(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error)
	Get(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error)
	Update(ctx context.Context, invoiceNumber string, update models.InvoiceUpdate) (*models.InvoiceStatus, error)
	Sweep(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

// Tracker validates and applies invoice status transitions
type Tracker struct {
	store  InvoiceStore
	logger *zap.Logger
}

// New creates a new tracker over the given store
func New(store InvoiceStore, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// CreateInvoice ensures a record exists for the invoice number.
// Creation is idempotent: an existing record is returned unchanged.
func (t *Tracker) CreateInvoice(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	record, err := t.store.Insert(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}

	t.logger.Info("Invoice record ensured",
		zap.String("invoice_number", invoiceNumber),
		zap.String("status", record.Status.String()))
	return record, nil
}

// MarkGenerating moves the invoice to the generating status
func (t *Tracker) MarkGenerating(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	status := models.StatusGenerating
	return t.transition(ctx, invoiceNumber, models.InvoiceUpdate{Status: &status})
}

// MarkCompleted moves the invoice to the completed status and records the
// PDF URL. URL well-formedness is the boundary's responsibility.
func (t *Tracker) MarkCompleted(ctx context.Context, invoiceNumber, pdfURL string) (*models.InvoiceStatus, error) {
	status := models.StatusCompleted
	return t.transition(ctx, invoiceNumber, models.InvoiceUpdate{Status: &status, PDFURL: &pdfURL})
}

// MarkFailed moves the invoice to the failed status with an error message
func (t *Tracker) MarkFailed(ctx context.Context, invoiceNumber, errorMessage string) (*models.InvoiceStatus, error) {
	status := models.StatusFailed
	return t.transition(ctx, invoiceNumber, models.InvoiceUpdate{Status: &status, ErrorMessage: &errorMessage})
}

// GetStatus returns the current record, or ErrNotFound
func (t *Tracker) GetStatus(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	record, err := t.store.Get(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// UpdateStatus applies a partial update without consulting the transition
// table. This is the administrative correction path, also used when the
// submitting client reports its own failure before any callback arrived.
func (t *Tracker) UpdateStatus(ctx context.Context, invoiceNumber string, update models.InvoiceUpdate) (*models.InvoiceStatus, error) {
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *update.Status)
	}

	record, err := t.store.Update(ctx, invoiceNumber, update)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}

	t.logger.Info("Invoice updated",
		zap.String("invoice_number", invoiceNumber),
		zap.String("status", record.Status.String()))
	return record, nil
}

// Sweep removes records older than maxAge and returns the count removed
func (t *Tracker) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	count, err := t.store.Sweep(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		t.logger.Info("Swept old invoice records",
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff))
	}
	return count, nil
}

// Stats returns aggregate counters over the store
func (t *Tracker) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := t.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{
		PendingInvoices:    counts[models.StatusPending],
		GeneratingInvoices: counts[models.StatusGenerating],
		CompletedInvoices:  counts[models.StatusCompleted],
		FailedInvoices:     counts[models.StatusFailed],
	}
	for _, c := range counts {
		stats.TotalInvoices += c
	}
	return stats, nil
}

// transition applies a status change after checking the transition table.
// A repeated terminal mark is an idempotent no-op returning the current
// record, so duplicate callback deliveries do not fail.
func (t *Tracker) transition(ctx context.Context, invoiceNumber string, update models.InvoiceUpdate) (*models.InvoiceStatus, error) {
	current, err := t.store.Get(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	target := *update.Status
	if current.Status == target {
		return current, nil
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}

	record, err := t.store.Update(ctx, invoiceNumber, update)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Record swept between the read and the write
		return nil, ErrNotFound
	}

	t.logger.Info("Invoice status transitioned",
		zap.String("invoice_number", invoiceNumber),
		zap.String("from", current.Status.String()),
		zap.String("to", target.String()))
	return record, nil
}
