package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"mountpass/internal/platform/metrics"
)

func TestLatencyMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(LatencyMiddleware(m))
	r.Get("/api/submitData/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/submitData/"+id, nil))
	}

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/submitData/{id}", "404"))
	assert.Equal(t, 2.0, got)
}
