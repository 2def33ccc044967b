package storage

import (
	"strings"
	"testing"
)

func TestNewMinIOStorageValidates(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MinIOConfig
		missing string
	}{
		{"empty", MinIOConfig{}, "endpoint, accessKey, secretKey"},
		{"no secret", MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a"}, "secretKey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinIOStorage(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.missing) {
				t.Fatalf("expected missing %q, got %v", tt.missing, err)
			}
		})
	}

	s, err := NewMinIOStorage(MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	if err != nil || s == nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
