package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
)

func event(passID int64) models.Event {
	return models.Event{
		ID:         uuid.New(),
		Type:       models.EventPassSubmitted,
		PassID:     passID,
		Status:     models.StatusNew,
		OccurredAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryPendingAndPublished(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, store.Append(ctx, event(i)))
	}

	select {
	case <-store.Notify():
	default:
		t.Fatal("expected append to signal Notify")
	}

	pending, err := store.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].Event.PassID)

	require.NoError(t, store.MarkPublished(ctx, pending[0].ID, time.Now()))
	pending, err = store.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].Event.PassID)

	assert.ErrorIs(t, store.MarkPublished(ctx, 99, time.Now()), sentinel.ErrNotFound)
}

func TestInMemorySnapshotRestore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	require.NoError(t, store.Append(ctx, event(1)))

	restore := store.Snapshot()
	require.NoError(t, store.Append(ctx, event(2)))
	restore()

	assert.Len(t, store.Entries(), 1)
}
