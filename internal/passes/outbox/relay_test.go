package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountpass/internal/passes/metrics"
	"mountpass/internal/passes/models"
	outboxstore "mountpass/internal/passes/store/outbox"
)

type recordingPublisher struct {
	mu      sync.Mutex
	got     []models.OutboxEntry
	failOn  int64
	failErr error
}

func (p *recordingPublisher) Publish(_ context.Context, entry models.OutboxEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != 0 && entry.Event.PassID == p.failOn {
		return p.failErr
	}
	p.got = append(p.got, entry)
	return nil
}

func (p *recordingPublisher) published() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.got))
	for _, e := range p.got {
		ids = append(ids, e.Event.PassID)
	}
	return ids
}

func appendEvents(t *testing.T, store *outboxstore.InMemory, passIDs ...int64) {
	t.Helper()
	for _, id := range passIDs {
		require.NoError(t, store.Append(context.Background(), models.Event{
			ID:         uuid.New(),
			Type:       models.EventPassSubmitted,
			PassID:     id,
			Status:     models.StatusNew,
			OccurredAt: time.Now(),
		}))
	}
}

func TestDrain(t *testing.T) {
	t.Run("publishes in order across batches", func(t *testing.T) {
		store := outboxstore.NewInMemory()
		appendEvents(t, store, 1, 2, 3, 4, 5)
		pub := &recordingPublisher{}
		m := metrics.NewWithRegisterer(prometheus.NewRegistry())
		relay := New(store, pub, Config{BatchSize: 2}, WithMetrics(m))

		n, err := relay.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, pub.published())
		assert.Equal(t, float64(5), testutil.ToFloat64(m.EventsPublished.WithLabelValues(string(models.EventPassSubmitted))))

		pending, err := store.ListPending(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("failure stops the batch and keeps the entry pending", func(t *testing.T) {
		store := outboxstore.NewInMemory()
		appendEvents(t, store, 1, 2, 3)
		pub := &recordingPublisher{failOn: 2, failErr: errors.New("broker unavailable")}
		m := metrics.NewWithRegisterer(prometheus.NewRegistry())
		relay := New(store, pub, Config{}, WithMetrics(m))

		n, err := relay.Drain(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker unavailable")
		assert.Equal(t, 1, n)
		assert.Equal(t, []int64{1}, pub.published())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.EventPublishError))

		pending, err := store.ListPending(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, int64(2), pending[0].Event.PassID)

		pub.failOn = 0
		n, err = relay.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []int64{1, 2, 3}, pub.published())
	})
}

func TestRunWakesOnNotify(t *testing.T) {
	store := outboxstore.NewInMemory()
	pub := &recordingPublisher{}
	relay := New(store, pub, Config{PollInterval: time.Hour}, WithWakeup(store.Notify()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	appendEvents(t, store, 7)
	assert.Eventually(t, func() bool {
		return len(pub.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewRecord(t *testing.T) {
	entry := models.OutboxEntry{ID: 1, Event: models.Event{
		ID:         uuid.New(),
		Type:       models.EventPassStatusChanged,
		PassID:     42,
		Status:     models.StatusAccepted,
		OccurredAt: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC),
	}}
	record, err := newRecord("pass-events", entry)
	require.NoError(t, err)
	assert.Equal(t, "pass-events", record.Topic)
	assert.Equal(t, []byte("42"), record.Key)
	require.Len(t, record.Headers, 1)
	assert.Equal(t, "pass_status_changed", string(record.Headers[0].Value))
	assert.Contains(t, string(record.Value), `"status":"accepted"`)
}
