package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "mountpass/pkg/domain-errors"
)

// MaxBodyBytes bounds JSON request bodies. Image payloads are base64 inside
// the body, so this is sized for several photos.
const MaxBodyBytes = 32 << 20

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the platform error envelope used by middleware and
// infrastructure endpoints. Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	body := map[string]string{"error": string(code)}
	if status != http.StatusInternalServerError {
		body["error_description"] = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, body)
}

// DecodeJSON reads a bounded JSON body into dst. Unknown fields are allowed
// so clients may send read-only fields back unchanged.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		case errors.As(err, &maxErr):
			return dErrors.New(dErrors.CodeBadRequest, "request body too large")
		default:
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
		}
	}
	return nil
}
