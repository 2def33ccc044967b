package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arena/internal/common/metrics"
	"arena/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		trace, _ := c.Request.Context().Value(contextkey.TraceID).(string)
		c.String(http.StatusOK, trace)
	})
	return r
}

func TestTraceContextGeneratesIDs(t *testing.T) {
	r := newRouter(TraceContextMiddleware())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	traceID := w.Header().Get(TraceIDHeader)
	if traceID == "" || w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated ids, got headers %v", w.Header())
	}
	if w.Body.String() != traceID {
		t.Fatalf("context trace id %q does not match header %q", w.Body.String(), traceID)
	}
}

func TestTraceContextKeepsIncomingID(t *testing.T) {
	r := newRouter(TraceContextMiddleware())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(TraceIDHeader) != "trace-123" || w.Body.String() != "trace-123" {
		t.Fatalf("incoming trace id not propagated")
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerIPRPS: 0.001, PerIPBurst: 2})
	r := newRouter(rl.Middleware())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes: %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("other client must not be limited, got %d", w.Code)
	}
}

func TestRateLimiterGlobal(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{GlobalRPS: 0.001, GlobalBurst: 1})
	if !rl.Allow("a") {
		t.Fatalf("first request must pass")
	}
	if rl.Allow("b") {
		t.Fatalf("global bucket must be exhausted")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(RateLimitConfig{PerIPRPS: 1, PerIPBurst: 1, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	if removed := rl.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 idle client removed, got %d", removed)
	}
	if _, ok := rl.clients["b"]; !ok {
		t.Fatalf("active client must be kept")
	}
}

func TestTraceContextReplacesOversizedID(t *testing.T) {
	r := newRouter(TraceContextMiddleware())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, strings.Repeat("x", maxIDLength+1))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(TraceIDHeader); len(got) > maxIDLength || got == "" {
		t.Fatalf("oversized trace id echoed back: %d bytes", len(got))
	}
}

func TestAccessLogRecordsLatency(t *testing.T) {
	r := newRouter(AccessLogMiddleware())
	for _, path := range []string{"/ping", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	series := testutil.CollectAndCount(metrics.HTTPLatency, "arena_http_request_seconds")
	if series < 2 {
		t.Fatalf("expected series for matched and unmatched routes, got %d", series)
	}
}
