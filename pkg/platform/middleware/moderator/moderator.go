// Package moderator guards moderation endpoints with a shared token.
package moderator

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/httputil"
	request "mountpass/pkg/platform/middleware/request"
)

// HeaderToken carries the moderator token.
const HeaderToken = "X-Moderator-Token"

// RequireToken admits requests whose token matches the bcrypt hash. With an
// empty hash every request passes.
func RequireToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokenHash == "" {
			return next
		}
		hash := []byte(tokenHash)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderToken)
			if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "moderator token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "moderator token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
