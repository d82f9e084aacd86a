package submitter

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
)

// InMemory stores submitters for tests and local development. Records are
// copied on the way in and out so callers never share state with the store.
type InMemory struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]models.Submitter
	byEmail map[string]int64
}

// NewInMemory constructs an empty submitter store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[int64]models.Submitter),
		byEmail: make(map[string]int64),
	}
}

func (s *InMemory) Create(_ context.Context, sub *models.Submitter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[sub.Email]; taken {
		return fmt.Errorf("submitter email %q: %w", sub.Email, sentinel.ErrAlreadyUsed)
	}
	s.nextID++
	sub.ID = s.nextID
	s.byID[sub.ID] = *sub
	s.byEmail[sub.Email] = sub.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, sub *models.Submitter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[sub.ID]
	if !ok {
		return fmt.Errorf("submitter %d: %w", sub.ID, sentinel.ErrNotFound)
	}
	if current.Email != sub.Email {
		if _, taken := s.byEmail[sub.Email]; taken {
			return fmt.Errorf("submitter email %q: %w", sub.Email, sentinel.ErrAlreadyUsed)
		}
		delete(s.byEmail, current.Email)
		s.byEmail[sub.Email] = sub.ID
	}
	s.byID[sub.ID] = *sub
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Submitter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("submitter %d: %w", id, sentinel.ErrNotFound)
	}
	return &sub, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Submitter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("submitter %q: %w", email, sentinel.ErrNotFound)
	}
	sub := s.byID[id]
	return &sub, nil
}

// Snapshot captures the current contents and returns a func restoring them.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	nextID := s.nextID
	byID := maps.Clone(s.byID)
	byEmail := maps.Clone(s.byEmail)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID = nextID
		s.byID = byID
		s.byEmail = byEmail
	}
}
