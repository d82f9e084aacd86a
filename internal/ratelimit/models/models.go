package models

import (
	"time"
)

// Scope names what a limit protects; it prefixes store keys and labels
// metrics.
type Scope string

const (
	ScopeSubmit Scope = "submit"
)

// Limit is a sliding-window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Key builds the store key for one client within a scope.
func (s Scope) Key(client string) string {
	return "ratelimit:" + string(s) + ":" + client
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the API response when rate limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never
// below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
