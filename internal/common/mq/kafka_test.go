package mq

import (
	"context"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewMessage("svc-1", []byte(`{"x":1}`)).WithHeader("event", "restart")
	msg.Time = ts

	km := encode("supervisor.events", msg)
	if km.Topic != "supervisor.events" || string(km.Key) != "svc-1" || string(km.Value) != `{"x":1}` {
		t.Fatalf("unexpected message: %+v", km)
	}
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event"] != "restart" {
		t.Fatalf("event header lost: %v", headers)
	}
	if headers[publishedAtHeader] != ts.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp header %q", headers[publishedAtHeader])
	}
}

func TestEncodeFillsZeroTime(t *testing.T) {
	km := encode("t", &Message{Value: []byte("x")})
	if km.Time.IsZero() {
		t.Fatalf("record time must be filled in")
	}
}

func TestPublishValidates(t *testing.T) {
	if _, err := NewKafkaPublisher(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()
	if err := p.Publish(context.Background(), "", NewMessage("k", nil)); err == nil {
		t.Fatalf("expected error for empty topic")
	}
	if err := p.Publish(context.Background(), "t"); err != nil {
		t.Fatalf("empty publish must be a no-op: %v", err)
	}
	if err := p.Publish(context.Background(), "t", nil, nil); err != nil {
		t.Fatalf("nil messages must be skipped: %v", err)
	}
}
