package middleware

import (
	"context"
	"log/slog"
	"time"

	rlmetrics "mountpass/internal/ratelimit/metrics"
	"mountpass/internal/ratelimit/models"
	"mountpass/pkg/platform/circuit"
)

// BucketStore is a sliding-window counter keyed by client.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Limiter checks a primary store and switches to an in-process fallback
// while the primary keeps failing.
type Limiter struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *rlmetrics.Metrics
}

// NewLimiter composes a primary store with an optional fallback. A nil
// fallback makes primary failures fail open.
func NewLimiter(primary, fallback BucketStore, logger *slog.Logger, opts ...circuit.Option) *Limiter {
	return &Limiter{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("ratelimit", opts...),
		logger:   logger,
	}
}

// WithMetrics records store failures, fallback use and breaker state.
func (l *Limiter) WithMetrics(m *rlmetrics.Metrics) *Limiter {
	l.metrics = m
	return l
}

// Check returns the result and whether it came from the fallback store.
func (l *Limiter) Check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error) {
	result, err := l.primary.Allow(ctx, key, limit.Requests, limit.Window)
	if err != nil {
		if l.metrics != nil {
			l.metrics.IncrementStoreErrors()
		}
		useFallback, change := l.breaker.RecordFailure()
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store unavailable, using fallback", "error", err)
			l.recordCircuit(true)
		}
		if useFallback && l.fallback != nil {
			return l.checkFallback(ctx, key, limit)
		}
		return nil, false, err
	}

	usePrimary, change := l.breaker.RecordSuccess()
	if change.Closed {
		l.logger.InfoContext(ctx, "rate limit store recovered")
		l.recordCircuit(false)
	}
	if !usePrimary && l.fallback != nil {
		return l.checkFallback(ctx, key, limit)
	}
	return result, false, nil
}

func (l *Limiter) checkFallback(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error) {
	if l.metrics != nil {
		l.metrics.IncrementFallbackDecisions()
	}
	res, err := l.fallback.Allow(ctx, key, limit.Requests, limit.Window)
	return res, true, err
}

func (l *Limiter) recordCircuit(open bool) {
	if l.metrics != nil {
		l.metrics.SetCircuitOpen(open)
	}
}
