//go:build !integration

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/infra/logging"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func TestTraceID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.TraceIDFrom(r.Context())
	}), TraceID(newTestLogger()))

	t.Run("caller id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if seen != "abc-123" || rr.Header().Get(RequestIDHeader) != "abc-123" {
			t.Fatalf("trace id not propagated: ctx=%q header=%q", seen, rr.Header().Get(RequestIDHeader))
		}
	})

	t.Run("missing id is minted", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
			t.Fatalf("expected a generated id, got %q", seen)
		}
	})
}

func TestRecover(t *testing.T) {
	log := newTestLogger()
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestLog(log), Recover(log))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected json body, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := Timeout(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !ok || time.Until(deadline) > time.Second {
		t.Fatalf("expected a deadline within 1s, got %v (set=%v)", deadline, ok)
	}
}
