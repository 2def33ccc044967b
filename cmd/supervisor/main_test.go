package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"arena/internal/supervisor"
)

func TestServiceRoutes(t *testing.T) {
	sups := []*supervisor.Supervisor{
		supervisor.New(supervisor.Config{Service: "exec-validation"}, nil, nil),
		supervisor.New(supervisor.Config{Service: "exec-simulation"}, nil, nil),
	}
	handler := buildHTTPServer(ServerConfig{}, sups).Handler

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/services", http.StatusOK},
		{"/services/exec-simulation", http.StatusOK},
		{"/services/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tt.path, tt.status, w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/services/exec-simulation", nil))
	var snap supervisor.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Service != "exec-simulation" || snap.State != supervisor.StateHealthy {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
