package requesttime

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mountpass/pkg/requestcontext"
	"mountpass/pkg/testutil"
)

func TestMiddleware(t *testing.T) {
	testutil.Given(t, "a request carrying a stale time", func(t *testing.T) {
		stale := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		req := testutil.WithRequestTime(testutil.NewRequest(t, http.MethodGet, "/"), stale)

		testutil.When(t, "it passes through the middleware", func(t *testing.T) {
			var first, second time.Time
			next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				first = requestcontext.Now(r.Context())
				second = requestcontext.Now(r.Context())
			})
			before := time.Now()
			testutil.DoRequest(Middleware(next), req)

			testutil.Then(t, "handlers see one pinned UTC time for the request", func(t *testing.T) {
				assert.Equal(t, first, second)
				assert.Equal(t, time.UTC, first.Location())
				assert.False(t, first.Before(before.Truncate(time.Second)))
			})
		})
	})
}
