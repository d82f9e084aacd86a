package outbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
)

// InMemory is an outbox for tests and local development. Append signals
// Notify so a relay can wake without polling.
type InMemory struct {
	mu      sync.RWMutex
	nextID  int64
	entries []models.OutboxEntry
	notify  chan struct{}
}

// NewInMemory constructs an empty outbox.
func NewInMemory() *InMemory {
	return &InMemory{notify: make(chan struct{}, 1)}
}

func (s *InMemory) Append(_ context.Context, event models.Event) error {
	s.mu.Lock()
	s.nextID++
	s.entries = append(s.entries, models.OutboxEntry{
		ID:        s.nextID,
		Event:     event,
		CreatedAt: event.OccurredAt,
	})
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// ListPending returns up to limit unpublished entries, oldest first.
func (s *InMemory) ListPending(_ context.Context, limit int) ([]models.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OutboxEntry
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].PublishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("outbox entry %d: %w", id, sentinel.ErrNotFound)
}

// Notify fires after an Append.
func (s *InMemory) Notify() <-chan struct{} {
	return s.notify
}

// Entries returns every entry, published or not.
func (s *InMemory) Entries() []models.OutboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Snapshot captures the current contents and returns a func restoring them.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	nextID := s.nextID
	entries := slices.Clone(s.entries)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID = nextID
		s.entries = entries
	}
}
