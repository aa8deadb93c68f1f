package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"go.uber.org/zap"
)

// InvoiceRepository is the SQLite-backed store for invoice status records.
// The invoice number is the primary key, so concurrent inserts of the same
// number cannot produce two rows; the loser observes the existing record.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates a pending record if absent and returns the current record.
// Re-inserting an existing invoice number is a no-op that returns the
// existing record unchanged.
func (r *InvoiceRepository) Insert(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	now := time.Now().UTC()

	query := `
		INSERT OR IGNORE INTO invoices (invoice_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, invoiceNumber, models.StatusPending, now, now); err != nil {
		r.logger.Error("Failed to insert invoice", zap.String("invoice_number", invoiceNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	record, err := r.Get(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("invoice %s missing after insert", invoiceNumber)
	}
	return record, nil
}

// Get retrieves a record by invoice number; absence returns (nil, nil)
func (r *InvoiceRepository) Get(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	query := `
		SELECT invoice_number, status, pdf_url, error_message, created_at, updated_at
		FROM invoices
		WHERE invoice_number = ?
	`

	var record models.InvoiceStatus
	var pdfURL, errorMessage sql.NullString

	err := r.db.QueryRowContext(ctx, query, invoiceNumber).Scan(
		&record.InvoiceNumber,
		&record.Status,
		&pdfURL,
		&errorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.String("invoice_number", invoiceNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	record.PDFURL = pdfURL.String
	record.ErrorMessage = errorMessage.String
	return &record, nil
}

// Update applies the provided fields and refreshes updated_at.
// Returns (nil, nil) if the invoice number is unknown.
func (r *InvoiceRepository) Update(ctx context.Context, invoiceNumber string, update models.InvoiceUpdate) (*models.InvoiceStatus, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.PDFURL != nil {
		sets = append(sets, "pdf_url = ?")
		args = append(args, *update.PDFURL)
	}
	if update.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *update.ErrorMessage)
	}

	args = append(args, invoiceNumber)
	query := fmt.Sprintf("UPDATE invoices SET %s WHERE invoice_number = ?", strings.Join(sets, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.String("invoice_number", invoiceNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.Get(ctx, invoiceNumber)
}

// Sweep deletes records created before the cutoff and returns the count removed
func (r *InvoiceRepository) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM invoices WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		r.logger.Error("Failed to sweep invoices", zap.Error(err))
		return 0, fmt.Errorf("failed to sweep invoices: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return count, nil
}

// CountByStatus returns per-status record counts
func (r *InvoiceRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM invoices GROUP BY status")
	if err != nil {
		r.logger.Error("Failed to count invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
