package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoTagsRequest(t *testing.T) {
	var seenID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || r.URL.Path != "/validate" || string(body) != `{"a":1}` {
			t.Errorf("unexpected request %s %s %s", r.Method, r.URL.Path, body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type")
		}
		seenID = r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := New("http://invalid.local", time.Second)
	c.SetBaseURL(srv.URL)
	info, err := c.Do(context.Background(), http.MethodPost, "/validate", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if info.StatusCode != http.StatusOK || string(info.Body) != `{"status":"success"}` {
		t.Fatalf("unexpected response: %d %s", info.StatusCode, info.Body)
	}
	if info.RequestID == "" || info.RequestID != seenID {
		t.Fatalf("request id %q not sent (server saw %q)", info.RequestID, seenID)
	}
}

func TestDoGetHasNoContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("GET must not carry a content type")
		}
	}))
	defer srv.Close()

	if _, err := New(srv.URL, time.Second).Do(context.Background(), http.MethodGet, "/health", nil); err != nil {
		t.Fatalf("do: %v", err)
	}
}
