// Package mq publishes supervisor events to a message broker.
package mq

import (
	"context"
	"time"
)

// Producer writes messages to a topic. Implementations must be safe for
// concurrent use.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...*Message) error
	Close() error
}

// Message is one broker record. Key selects the partition, so all records
// for one service stay ordered.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

func NewMessage(key string, value []byte) *Message {
	return &Message{Key: key, Value: value, Time: time.Now()}
}

// WithHeader sets a header and returns m for chaining.
func (m *Message) WithHeader(key, value string) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]string, 2)
	}
	m.Headers[key] = value
	return m
}

func (m *Message) Header(key string) string {
	return m.Headers[key]
}
