package testutil

import (
	"context"
	"net/http"
	"time"

	"mountpass/pkg/requestcontext"
)

// WithClientIP sets the client address the way the metadata middleware does,
// for handlers and middleware tested without the full chain.
func WithClientIP(req *http.Request, ip string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, req.UserAgent())
	return req.WithContext(ctx)
}

// WithRequestTime pins the request's "now".
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
