package repository

import (
	"context"
	"sync"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
)

// MemoryInvoiceRepository keeps invoice records in a process-local map.
// It mirrors the SQLite repository's semantics and is used in tests and
// as a fallback when no durable store is configured.
type MemoryInvoiceRepository struct {
	mu      sync.RWMutex
	records map[string]*models.InvoiceStatus
}

// NewMemoryInvoiceRepository creates an empty in-memory repository
func NewMemoryInvoiceRepository() *MemoryInvoiceRepository {
	return &MemoryInvoiceRepository{
		records: make(map[string]*models.InvoiceStatus),
	}
}

// Insert creates a pending record if absent and returns the current record
func (r *MemoryInvoiceRepository) Insert(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[invoiceNumber]; ok {
		return clone(existing), nil
	}

	now := time.Now().UTC()
	record := &models.InvoiceStatus{
		InvoiceNumber: invoiceNumber,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.records[invoiceNumber] = record
	return clone(record), nil
}

// Get retrieves a record by invoice number; absence returns (nil, nil)
func (r *MemoryInvoiceRepository) Get(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[invoiceNumber]
	if !ok {
		return nil, nil
	}
	return clone(record), nil
}

// Update applies the provided fields and refreshes updated_at
func (r *MemoryInvoiceRepository) Update(ctx context.Context, invoiceNumber string, update models.InvoiceUpdate) (*models.InvoiceStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[invoiceNumber]
	if !ok {
		return nil, nil
	}

	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.PDFURL != nil {
		record.PDFURL = *update.PDFURL
	}
	if update.ErrorMessage != nil {
		record.ErrorMessage = *update.ErrorMessage
	}
	record.UpdatedAt = time.Now().UTC()

	return clone(record), nil
}

// Sweep deletes records created before the cutoff
func (r *MemoryInvoiceRepository) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for number, record := range r.records {
		if record.CreatedAt.Before(cutoff) {
			delete(r.records, number)
			count++
		}
	}
	return count, nil
}

// CountByStatus returns per-status record counts
func (r *MemoryInvoiceRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.Status]int)
	for _, record := range r.records {
		counts[record.Status]++
	}
	return counts, nil
}

func clone(record *models.InvoiceStatus) *models.InvoiceStatus {
	copied := *record
	return &copied
}
