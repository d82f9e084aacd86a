package metadata

import (
	"net"
	"net/http"

	"mountpass/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and stores them in the request context. Apply it early in the chain; the
// submission rate limiter keys on the IP.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the peer address of the connection. Forwarding
// headers are ignored; deployments behind a proxy rewrite RemoteAddr first
// (chi's RealIP, enabled by MOUNTPASS_TRUST_PROXY).
func ClientIPFromRequest(r *http.Request) string {
	addr := r.RemoteAddr
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
