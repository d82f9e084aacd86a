// Package outbox relays pass events from the transactional outbox to a
// message broker.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mountpass/internal/passes/metrics"
	"mountpass/internal/passes/models"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100
)

// Source is the outbox the relay drains.
type Source interface {
	ListPending(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
}

// Publisher delivers one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, entry models.OutboxEntry) error
}

// Config controls relay loop behavior.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

// Relay publishes pending outbox entries in append order. A failed publish
// stops the batch so later events never overtake an earlier one.
type Relay struct {
	source    Source
	publisher Publisher
	cfg       Config
	wake      []<-chan struct{}
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Relay)

// WithWakeup adds a channel that triggers a drain before the next poll.
func WithWakeup(ch <-chan struct{}) Option {
	return func(r *Relay) {
		if ch != nil {
			r.wake = append(r.wake, ch)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a Relay.
func New(source Source, publisher Publisher, cfg Config, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		cfg:       cfg.normalized(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until ctx is cancelled. Drain failures are logged
// and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	wake := r.merged(ctx)
	r.logger.InfoContext(ctx, "outbox relay started", "poll_interval", r.cfg.PollInterval)
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "outbox drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

// merged fans every wake-up channel into one.
func (r *Relay) merged(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	for _, ch := range r.wake {
		go func(ch <-chan struct{}) {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- struct{}{}:
					default:
					}
				}
			}
		}(ch)
	}
	return out
}

// Drain publishes pending entries until none remain and returns how many
// were published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	published := 0
	for {
		entries, err := r.source.ListPending(ctx, r.cfg.BatchSize)
		if err != nil {
			return published, fmt.Errorf("list pending events: %w", err)
		}
		for _, entry := range entries {
			if err := r.publisher.Publish(ctx, entry); err != nil {
				if r.metrics != nil {
					r.metrics.IncrementPublishError()
				}
				return published, fmt.Errorf("publish event %s: %w", entry.Event.ID, err)
			}
			if err := r.source.MarkPublished(ctx, entry.ID, r.now()); err != nil {
				return published, fmt.Errorf("mark event %s published: %w", entry.Event.ID, err)
			}
			published++
			if r.metrics != nil {
				r.metrics.IncrementEventPublished(string(entry.Event.Type))
			}
			r.logger.DebugContext(ctx, "pass event published",
				"event_id", entry.Event.ID,
				"event_type", entry.Event.Type,
				"pass_id", entry.Event.PassID,
			)
		}
		if len(entries) < r.cfg.BatchSize {
			return published, nil
		}
	}
}
