package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"go.uber.org/zap"
)

// WebhookEventRepository persists received callback events for inspection
type WebhookEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *sql.DB, logger *zap.Logger) *WebhookEventRepository {
	return &WebhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a webhook event and sets its ID
func (r *WebhookEventRepository) Insert(ctx context.Context, event *models.WebhookEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO webhook_events (event_type, payload, processed_state, invoice_number, received_at, processing_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		event.EventType,
		event.Payload,
		event.ProcessedState,
		event.InvoiceNumber,
		event.ReceivedAt,
		event.ProcessingMs,
	)
	if err != nil {
		r.logger.Error("Failed to insert webhook event", zap.Error(err))
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	return nil
}

// List returns events matching the filter, newest first, and the total
// match count for pagination
func (r *WebhookEventRepository) List(ctx context.Context, filter models.WebhookEventFilter) ([]*models.WebhookEvent, int, error) {
	where := ""
	var conditions []string
	var args []interface{}

	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.InvoiceNumber != "" {
		conditions = append(conditions, "invoice_number = ?")
		args = append(args, filter.InvoiceNumber)
	}
	for i, cond := range conditions {
		if i == 0 {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_events"+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count webhook events", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count webhook events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, event_type, payload, processed_state, invoice_number, received_at, processing_ms
		FROM webhook_events` + where + `
		ORDER BY received_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		r.logger.Error("Failed to list webhook events", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		var event models.WebhookEvent
		var processedState, invoiceNumber sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&processedState,
			&invoiceNumber,
			&event.ReceivedAt,
			&event.ProcessingMs,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan webhook event: %w", err)
		}

		event.ProcessedState = processedState.String
		event.InvoiceNumber = invoiceNumber.String
		events = append(events, &event)
	}

	return events, total, rows.Err()
}

// Sweep deletes events received before the cutoff
func (r *WebhookEventRepository) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE received_at < ?", cutoff.UTC())
	if err != nil {
		r.logger.Error("Failed to sweep webhook events", zap.Error(err))
		return 0, fmt.Errorf("failed to sweep webhook events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return count, nil
}

// Count returns the total number of stored events
func (r *WebhookEventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count webhook events: %w", err)
	}
	return count, nil
}
