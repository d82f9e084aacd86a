package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mountpass/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for is ignored", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:4000", want: "10.0.0.2"},
		{name: "real ip is ignored", headers: map[string]string{"X-Real-IP": " 198.51.100.3 "}, remote: "10.0.0.2:4000", want: "10.0.0.2"},
		{name: "bare remote addr", remote: "192.0.2.10", want: "192.0.2.10"},
		{name: "no remote addr", want: "unknown"},
		{name: "ipv4 remote addr", remote: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "ipv6 remote addr", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r))
		})
	}
}

func TestClientMetadataStoresValues(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.44:1000"
	r.Header.Set("User-Agent", "pass-app/1.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.44", gotIP)
	assert.Equal(t, "pass-app/1.0", gotUA)
}
