package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"github.com/alphabizdigital/invoice-tracker/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Both repository variants satisfy the store contract
var (
	_ InvoiceStore = (*repository.InvoiceRepository)(nil)
	_ InvoiceStore = (*repository.MemoryInvoiceRepository)(nil)
)

func newTracker() *Tracker {
	return New(repository.NewMemoryInvoiceRepository(), zap.NewNop())
}

func TestTracker_CreateThenGet(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	created, err := tr.CreateInvoice(ctx, "INV-2025-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Empty(t, created.PDFURL)

	got, err := tr.GetStatus(ctx, "INV-2025-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestTracker_CreateIsIdempotent(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)
	_, err = tr.MarkGenerating(ctx, "INV-1")
	require.NoError(t, err)

	record, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerating, record.Status,
		"re-creation must not reset an advanced status")
}

func TestTracker_GetStatusUnknown(t *testing.T) {
	tr := newTracker()

	_, err := tr.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTracker_MarkCompleted(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	created, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	record, err := tr.MarkCompleted(ctx, "INV-1", "https://host/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Equal(t, "https://host/x.pdf", record.PDFURL)
	assert.True(t, record.UpdatedAt.After(created.UpdatedAt))
}

func TestTracker_MarkFailed(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)

	record, err := tr.MarkFailed(ctx, "INV-1", "template missing")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, "template missing", record.ErrorMessage)
}

func TestTracker_MarkOnUnknownInvoice(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.MarkGenerating(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tr.MarkCompleted(ctx, "missing", "https://host/x.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTracker_TransitionTable(t *testing.T) {
	ctx := context.Background()

	t.Run("full lifecycle", func(t *testing.T) {
		tr := newTracker()
		_, err := tr.CreateInvoice(ctx, "INV-1")
		require.NoError(t, err)
		_, err = tr.MarkGenerating(ctx, "INV-1")
		require.NoError(t, err)
		record, err := tr.MarkCompleted(ctx, "INV-1", "https://host/x.pdf")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, record.Status)
	})

	t.Run("completed is terminal", func(t *testing.T) {
		tr := newTracker()
		_, err := tr.CreateInvoice(ctx, "INV-1")
		require.NoError(t, err)
		_, err = tr.MarkCompleted(ctx, "INV-1", "https://host/x.pdf")
		require.NoError(t, err)

		_, err = tr.MarkGenerating(ctx, "INV-1")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = tr.MarkFailed(ctx, "INV-1", "late failure")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("duplicate completion is a no-op", func(t *testing.T) {
		tr := newTracker()
		_, err := tr.CreateInvoice(ctx, "INV-1")
		require.NoError(t, err)
		first, err := tr.MarkCompleted(ctx, "INV-1", "https://host/x.pdf")
		require.NoError(t, err)

		second, err := tr.MarkCompleted(ctx, "INV-1", "https://host/other.pdf")
		require.NoError(t, err)
		assert.Equal(t, first.PDFURL, second.PDFURL, "duplicate delivery keeps the first URL")
		assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	})
}

func TestTracker_UpdateStatus(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)

	failed := models.StatusFailed
	msg := "submission to workflow failed"
	record, err := tr.UpdateStatus(ctx, "INV-1", models.InvoiceUpdate{Status: &failed, ErrorMessage: &msg})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, msg, record.ErrorMessage)

	// Round-trip: the stored value is byte-for-byte what was written
	got, err := tr.GetStatus(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, msg, got.ErrorMessage)

	// The force path may move a terminal record back for manual correction
	generating := models.StatusGenerating
	record, err = tr.UpdateStatus(ctx, "INV-1", models.InvoiceUpdate{Status: &generating})
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerating, record.Status)
}

func TestTracker_UpdateStatusValidation(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	bad := models.Status("done")
	_, err := tr.UpdateStatus(ctx, "INV-1", models.InvoiceUpdate{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	ok := models.StatusFailed
	_, err = tr.UpdateStatus(ctx, "missing", models.InvoiceUpdate{Status: &ok})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTracker_Sweep(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)

	count, err := tr.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = tr.Sweep(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTracker_Stats(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.CreateInvoice(ctx, "INV-1")
	require.NoError(t, err)
	_, err = tr.CreateInvoice(ctx, "INV-2")
	require.NoError(t, err)
	_, err = tr.MarkCompleted(ctx, "INV-2", "https://host/x.pdf")
	require.NoError(t, err)

	stats, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInvoices)
	assert.Equal(t, 1, stats.PendingInvoices)
	assert.Equal(t, 1, stats.CompletedInvoices)
}

type failingStore struct {
	repository.MemoryInvoiceRepository
}

func (f *failingStore) Get(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	return nil, errors.New("disk on fire")
}

func TestTracker_StoreErrorsPropagate(t *testing.T) {
	tr := New(&failingStore{}, zap.NewNop())

	_, err := tr.GetStatus(context.Background(), "INV-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
