package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountpass/internal/platform/metrics"
	rlmetrics "mountpass/internal/ratelimit/metrics"
	"mountpass/internal/ratelimit/models"
	"mountpass/internal/ratelimit/store/bucket"
	"mountpass/pkg/platform/circuit"
	"mountpass/pkg/testutil"
)

var submitLimit = models.Limit{Requests: 2, Window: time.Minute}

type failingStore struct{ calls int }

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (*models.RateLimitResult, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := testutil.WithClientIP(testutil.NewRequest(t, http.MethodPost, "/api/submitData/"), ip)
	return testutil.DoRequest(mw(next), req)
}

func TestRateLimit(t *testing.T) {
	t.Run("admits up to the limit then rejects with 429", func(t *testing.T) {
		m := metrics.NewWithRegisterer(prometheus.NewRegistry())
		limiter := NewLimiter(bucket.New(), nil, discardLogger())
		mw := New(limiter, discardLogger(), WithMetrics(m)).RateLimit(models.ScopeSubmit, submitLimit)

		first := serve(t, mw, "10.0.0.1")
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

		assert.Equal(t, http.StatusOK, serve(t, mw, "10.0.0.1").Code)

		denied := serve(t, mw, "10.0.0.1")
		assert.Equal(t, http.StatusTooManyRequests, denied.Code)
		assert.Equal(t, "60", denied.Header().Get("Retry-After"))
		assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))
		assert.JSONEq(t, `{"error":"rate_limit_exceeded","message":"too many submissions from this address, try again later","retry_after":60}`, denied.Body.String())
		assert.Equal(t, float64(1), promtest.ToFloat64(m.RateLimited.WithLabelValues("submit")))

		assert.Equal(t, http.StatusOK, serve(t, mw, "10.0.0.2").Code, "other clients keep their own budget")
	})

	t.Run("disabled passes everything", func(t *testing.T) {
		mw := New(NewLimiter(bucket.New(), nil, discardLogger()), discardLogger(), WithDisabled(true)).
			RateLimit(models.ScopeSubmit, models.Limit{Requests: 0, Window: time.Minute})
		rr := serve(t, mw, "10.0.0.1")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("store failure without fallback fails open", func(t *testing.T) {
		mw := New(NewLimiter(&failingStore{}, nil, discardLogger()), discardLogger()).
			RateLimit(models.ScopeSubmit, submitLimit)
		for range 5 {
			assert.Equal(t, http.StatusOK, serve(t, mw, "10.0.0.1").Code)
		}
	})
}

func TestLimiterFallback(t *testing.T) {
	primary := &failingStore{}
	rm := rlmetrics.NewWithRegisterer(prometheus.NewRegistry())
	limiter := NewLimiter(primary, bucket.New(), discardLogger(), circuit.WithFailureThreshold(2)).WithMetrics(rm)
	ctx := context.Background()

	_, degraded, err := limiter.Check(ctx, models.ScopeSubmit.Key("10.0.0.1"), submitLimit)
	require.Error(t, err, "below the threshold the failure is returned")
	assert.False(t, degraded)

	res, degraded, err := limiter.Check(ctx, models.ScopeSubmit.Key("10.0.0.1"), submitLimit)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.True(t, res.Allowed)

	mw := New(limiter, discardLogger()).RateLimit(models.ScopeSubmit, submitLimit)
	rr := serve(t, mw, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", rr.Header().Get(headerStatus))

	rr = serve(t, mw, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "fallback enforces the same budget")

	assert.Equal(t, float64(4), promtest.ToFloat64(rm.StoreErrors))
	assert.Equal(t, float64(3), promtest.ToFloat64(rm.FallbackDecisions))
	assert.Equal(t, float64(1), promtest.ToFloat64(rm.CircuitOpen))
}
