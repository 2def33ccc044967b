package mq

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishedAtHeader = "published-at"

// KafkaConfig configures the Kafka writer.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

func (c *KafkaConfig) applyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "arena-supervisor"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 20 * time.Millisecond
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// KafkaPublisher is a Producer over a kafka-go writer.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	cfg.applyDefaults()

	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: cfg.DialTimeout, DualStack: true}
	transport := &kafka.Transport{
		ClientID: cfg.ClientID,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Transport:    transport,
	}}, nil
}

// Publish writes messages in one call. Nil entries are skipped.
func (k *KafkaPublisher) Publish(ctx context.Context, topic string, messages ...*Message) error {
	if topic == "" {
		return errors.New("kafka topic is required")
	}
	records := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		if m != nil {
			records = append(records, encode(topic, m))
		}
	}
	if len(records) == 0 {
		return nil
	}
	return k.writer.WriteMessages(ctx, records...)
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

func encode(topic string, m *Message) kafka.Message {
	at := m.Time
	if at.IsZero() {
		at = time.Now()
	}
	headers := make([]kafka.Header, 0, len(m.Headers)+1)
	for key, value := range m.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	headers = append(headers, kafka.Header{Key: publishedAtHeader, Value: []byte(at.UTC().Format(time.RFC3339Nano))})
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(m.Key),
		Value:   m.Value,
		Headers: headers,
		Time:    at,
	}
}
