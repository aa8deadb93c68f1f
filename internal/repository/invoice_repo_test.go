package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"github.com/alphabizdigital/invoice-tracker/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations("../../migrations"))

	return db
}

func TestInvoiceRepository_InsertAndGet(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t).DB, zap.NewNop())
	ctx := context.Background()

	record, err := repo.Insert(ctx, "INV-2025-001")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "INV-2025-001", record.InvoiceNumber)
	assert.Equal(t, models.StatusPending, record.Status)
	assert.Empty(t, record.PDFURL)
	assert.False(t, record.CreatedAt.IsZero())
	assert.False(t, record.UpdatedAt.Before(record.CreatedAt))

	got, err := repo.Get(ctx, "INV-2025-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestInvoiceRepository_GetUnknownReturnsNil(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t).DB, zap.NewNop())

	got, err := repo.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvoiceRepository_InsertIsIdempotent(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t).DB, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Insert(ctx, "INV-2025-002")
	require.NoError(t, err)

	// Advance the record, then re-insert: the status must not reset
	generating := models.StatusGenerating
	_, err = repo.Update(ctx, "INV-2025-002", models.InvoiceUpdate{Status: &generating})
	require.NoError(t, err)

	record, err := repo.Insert(ctx, "INV-2025-002")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.StatusGenerating, record.Status)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusGenerating])
	assert.Equal(t, 0, counts[models.StatusPending])
}

func TestInvoiceRepository_UpdateAppliesPartialFields(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t).DB, zap.NewNop())
	ctx := context.Background()

	created, err := repo.Insert(ctx, "INV-2025-003")
	require.NoError(t, err)

	completed := models.StatusCompleted
	pdfURL := "https://host/x.pdf"
	updated, err := repo.Update(ctx, "INV-2025-003", models.InvoiceUpdate{
		Status: &completed,
		PDFURL: &pdfURL,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "https://host/x.pdf", updated.PDFURL)
	assert.Empty(t, updated.ErrorMessage)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt),
		"updated_at must advance on update")
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix(),
		"created_at is immutable")
}

func TestInvoiceRepository_UpdateUnknownReturnsNil(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t).DB, zap.NewNop())

	failed := models.StatusFailed
	record, err := repo.Update(context.Background(), "missing", models.InvoiceUpdate{Status: &failed})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestInvoiceRepository_Sweep(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t).DB, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Insert(ctx, "INV-OLD")
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "INV-NEW")
	require.NoError(t, err)

	// A cutoff in the past removes nothing
	count, err := repo.Sweep(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A future cutoff removes everything
	count, err = repo.Sweep(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := repo.Get(ctx, "INV-OLD")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWebhookEventRepository_InsertAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewWebhookEventRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	first := &models.WebhookEvent{
		EventType:     "invoice_callback",
		Payload:       `{"invoice_number":"INV-1","status":"success"}`,
		InvoiceNumber: "INV-1",
		ReceivedAt:    time.Now().UTC().Add(-time.Minute),
		ProcessingMs:  12,
	}
	require.NoError(t, repo.Insert(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.WebhookEvent{
		EventType:     "invoice_callback",
		Payload:       `{"invoice_number":"INV-2","status":"failed"}`,
		InvoiceNumber: "INV-2",
	}
	require.NoError(t, repo.Insert(ctx, second))

	events, total, err := repo.List(ctx, models.WebhookEventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 2)
	assert.Equal(t, "INV-2", events[0].InvoiceNumber, "newest first")

	events, total, err = repo.List(ctx, models.WebhookEventFilter{InvoiceNumber: "INV-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, int64(12), events[0].ProcessingMs)
}

func TestWebhookEventRepository_Sweep(t *testing.T) {
	db := newTestDB(t)
	repo := NewWebhookEventRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	old := &models.WebhookEvent{
		EventType:  "invoice_callback",
		Payload:    "{}",
		ReceivedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, repo.Insert(ctx, old))

	recent := &models.WebhookEvent{EventType: "invoice_callback", Payload: "{}"}
	require.NoError(t, repo.Insert(ctx, recent))

	count, err := repo.Sweep(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}
