package main

import (
	"context"
	"net/http"
	"time"

	"mountpass/pkg/platform/httputil"
)

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// readinessHandler reports 503 when any dependency fails its ping.
func readinessHandler(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				resp.Checks[c.name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
