package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"arena/pkg/errors"

	"github.com/gin-gonic/gin"
)

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set("trace_id", "trace-1")
		h(c)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	return env
}

func TestFailPromotesTo5xx(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ScratchIOError), http.StatusInternalServerError},
		{errors.New(errors.ServiceUnavailable), http.StatusServiceUnavailable},
		{errors.New(errors.InvalidParams), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := serve(func(c *gin.Context) { Fail(c, tt.err) })
		if w.Code != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, w.Code)
		}
		if env := decode(t, w); env.Status != "error" || env.TraceID != "trace-1" {
			t.Fatalf("unexpected envelope %+v", env)
		}
	}
}

func TestAbortWithCodeDefaultsMessage(t *testing.T) {
	w := serve(func(c *gin.Context) { AbortWithCode(c, errors.TooManyRequests, "") })
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if env := decode(t, w); env.Message != errors.TooManyRequests.Message() {
		t.Fatalf("unexpected message %q", env.Message)
	}
}
