package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okrtools/goalpost/internal/logger"
	"github.com/okrtools/goalpost/internal/middleware"
)

func TestRequestIDGenerated(t *testing.T) {
	var ctxID string
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if ctxID == "" {
		t.Fatal("no request ID on context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != ctxID {
		t.Errorf("response header %q != context ID %q", got, ctxID)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	var ctxID string
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", "caller-supplied")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if ctxID != "caller-supplied" {
		t.Errorf("request ID = %q, want caller-supplied", ctxID)
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	var ctxID string
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
	}))

	oversized := strings.Repeat("x", 200)
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", oversized)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if ctxID == "" || ctxID == oversized {
		t.Errorf("oversized caller id not replaced, got %q", ctxID)
	}
	if len(ctxID) > 64 {
		t.Errorf("request ID too long: %q", ctxID)
	}
}
