package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInvoiceRepository_InsertGetUpdate(t *testing.T) {
	repo := NewMemoryInvoiceRepository()
	ctx := context.Background()

	record, err := repo.Insert(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, record.Status)

	// Re-insert returns the existing record
	again, err := repo.Insert(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, record.CreatedAt, again.CreatedAt)

	failed := models.StatusFailed
	msg := "workflow exploded"
	updated, err := repo.Update(ctx, "INV-1", models.InvoiceUpdate{Status: &failed, ErrorMessage: &msg})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.StatusFailed, updated.Status)
	assert.Equal(t, "workflow exploded", updated.ErrorMessage)

	missing, err := repo.Update(ctx, "nope", models.InvoiceUpdate{Status: &failed})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryInvoiceRepository_ReturnedRecordsAreCopies(t *testing.T) {
	repo := NewMemoryInvoiceRepository()
	ctx := context.Background()

	record, err := repo.Insert(ctx, "INV-1")
	require.NoError(t, err)

	record.Status = models.StatusCompleted

	stored, err := repo.Get(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status, "caller mutation must not leak into the store")
}

func TestMemoryInvoiceRepository_Sweep(t *testing.T) {
	repo := NewMemoryInvoiceRepository()
	ctx := context.Background()

	_, err := repo.Insert(ctx, "INV-1")
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "INV-2")
	require.NoError(t, err)

	count, err := repo.Sweep(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := repo.Get(ctx, "INV-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryInvoiceRepository_ConcurrentInsertSameKey(t *testing.T) {
	repo := NewMemoryInvoiceRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Insert(ctx, "INV-RACE")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusPending], "concurrent inserts must not duplicate the row")
}
