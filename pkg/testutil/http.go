// Package testutil provides request builders and envelope assertions for the
// /api/submitData tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateEnvelope is the POST /api/submitData response.
type CreateEnvelope struct {
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	ID      int64               `json:"id"`
	Errors  map[string][]string `json:"errors"`
	Error   string              `json:"error"`
}

// StateEnvelope is the edit and status-update response.
type StateEnvelope struct {
	State   int                 `json:"state"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// NewJSONRequest marshals body and builds a JSON request.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest builds a request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a JSON request from a literal body.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the body into T without consuming the recorder.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response: %s", rr.Body.String())
	return &result
}

// AssertCreated checks a successful create envelope and returns the new id.
func AssertCreated(t *testing.T, rr *httptest.ResponseRecorder) int64 {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	env := UnmarshalResponse[CreateEnvelope](t, rr)
	require.Equal(t, http.StatusOK, env.Status)
	require.NotZero(t, env.ID)
	return env.ID
}

// AssertState checks the HTTP status and the state flag of an edit response.
func AssertState(t *testing.T, rr *httptest.ResponseRecorder, code, state int) *StateEnvelope {
	t.Helper()
	assert.Equal(t, code, rr.Code, "unexpected status code: %s", rr.Body.String())
	env := UnmarshalResponse[StateEnvelope](t, rr)
	assert.Equal(t, state, env.State, "unexpected state")
	return env
}

// AssertLookupError checks a {error} response from the lookup endpoints.
func AssertLookupError(t *testing.T, rr *httptest.ResponseRecorder, code int) string {
	t.Helper()
	assert.Equal(t, code, rr.Code, "unexpected status code: %s", rr.Body.String())
	env := UnmarshalResponse[struct {
		Error string `json:"error"`
	}](t, rr)
	assert.NotEmpty(t, env.Error, "lookup error without message")
	return env.Error
}

// AssertFieldError checks that errors[field] carries at least one message.
func AssertFieldError(t *testing.T, errs map[string][]string, field string) {
	t.Helper()
	assert.NotEmpty(t, errs[field], "expected an error for %q, got %v", field, errs)
}
