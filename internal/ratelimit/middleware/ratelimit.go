// Package middleware applies per-client rate limits to HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"mountpass/internal/platform/metrics"
	"mountpass/internal/ratelimit/models"
	"mountpass/pkg/platform/httputil"
	"mountpass/pkg/requestcontext"
)

const headerStatus = "X-RateLimit-Status"

// RateLimiter decides whether the client identified by key may proceed.
type RateLimiter interface {
	Check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP within scope. Store failures
// without a fallback let the request through.
func (m *Middleware) RateLimit(scope models.Scope, limit models.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result, degraded, err := m.limiter.Check(ctx, scope.Key(ip), limit)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set(headerStatus, "degraded")
			}

			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.IncrementRateLimited(string(scope))
				}
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"client_ip", ip,
					"retry_after", result.RetryAfter,
				)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "too many submissions from this address, try again later",
		RetryAfter: result.RetryAfter,
	})
}
