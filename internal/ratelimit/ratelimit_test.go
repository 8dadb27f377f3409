package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore()
	s.now = func() time.Time { return now }

	for i := range 3 {
		r := s.Allow("a", 3, time.Minute)
		require.True(t, r.Allowed)
		assert.Equal(t, 2-i, r.Remaining)
	}
	denied := s.Allow("a", 3, time.Minute)
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Unix(1060, 0), denied.ResetAt)
	assert.True(t, s.Allow("b", 3, time.Minute).Allowed, "keys are independent")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, s.Allow("a", 3, time.Minute).Allowed, "window slid past old requests")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, s.Purge())
}

func TestStoreUsesLatestWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore()
	s.now = func() time.Time { return now }

	require.True(t, s.Allow("a", 1, time.Hour).Allowed)
	now = now.Add(2 * time.Minute)
	assert.False(t, s.Allow("a", 1, time.Hour).Allowed)

	r := s.Allow("a", 1, time.Minute)
	assert.True(t, r.Allowed, "the shorter window drops the old request")
	assert.Equal(t, now.Add(time.Minute), r.ResetAt)
}

func TestMiddleware(t *testing.T) {
	limiter := New(NewStore(), 2, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/resolve", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234").Code)
	w := send("10.0.0.1:5678")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send("10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limited")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1234").Code)
}

func TestMiddlewareDisabled(t *testing.T) {
	limiter := New(NewStore(), 0, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/resolve", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
