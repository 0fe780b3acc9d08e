package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/akolanti/ComplianceGPT/internal/config"
)

func TestWrap_InjectsTrace(t *testing.T) {
	var seen string
	h := Wrap(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(config.TRACE_ID_KEY).(string)
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(traceHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.2:4000"
		req.Header.Set(traceHeader, "upstream-trace")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, "upstream-trace", seen)
		assert.Equal(t, "upstream-trace", rec.Header().Get(traceHeader))
	})
}

func TestWrap_RateLimitsPerAddress(t *testing.T) {
	calls := 0
	h := Wrap(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ask", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	var limited *httptest.ResponseRecorder
	for i := 0; i < config.BURST_RATE_LIMIT_PER_SECOND+5; i++ {
		if rec := send("10.9.9.9:1234"); rec.Code == http.StatusTooManyRequests {
			limited = rec
			break
		}
	}
	require.NotNil(t, limited, "burst was never exhausted")
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.NotEmpty(t, limited.Header().Get(traceHeader))

	// other callers are unaffected
	assert.Equal(t, http.StatusOK, send("10.9.9.10:1234").Code)
	assert.GreaterOrEqual(t, calls, config.BURST_RATE_LIMIT_PER_SECOND)
}

func TestRouteLabel(t *testing.T) {
	r := chi.NewRouter()
	var label string
	r.Get("/status/{id}", func(w http.ResponseWriter, req *http.Request) {
		label = routeLabel(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status/abc-123", nil))
	assert.Equal(t, "/status/{id}", label)

	assert.Equal(t, "unknown", routeLabel(nil))
	assert.Equal(t, "/plain", routeLabel(httptest.NewRequest(http.MethodGet, "/plain", nil)))
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.now = func() time.Time { return now }

	first := l.GetLimiter("a")
	l.GetLimiter("b")
	assert.Same(t, first, l.GetLimiter("a"))

	now = now.Add(10 * time.Minute)
	l.GetLimiter("b")
	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.NotSame(t, first, l.GetLimiter("a"))
	assert.Len(t, l.ips, 2)
}
