package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"arena/internal/common/mq"
	appErr "arena/pkg/errors"
)

// EventPublisher announces restart attempts.
type EventPublisher interface {
	PublishRestart(ctx context.Context, event RestartEvent) error
}

// MQEventPublisher publishes restart events to a topic keyed by service.
type MQEventPublisher struct {
	producer mq.Producer
	topic    string
}

func NewMQEventPublisher(producer mq.Producer, topic string) *MQEventPublisher {
	return &MQEventPublisher{producer: producer, topic: topic}
}

func (p *MQEventPublisher) PublishRestart(ctx context.Context, event RestartEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("event publisher is not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal restart event failed: %w", err)
	}
	outcome := "ok"
	if !event.Success {
		outcome = "failed"
	}
	msg := mq.NewMessage(event.Service, payload).
		WithHeader("event", "restart").
		WithHeader("outcome", outcome)
	if err := p.producer.Publish(ctx, p.topic, msg); err != nil {
		return appErr.Wrapf(err, appErr.PublishFailed, "publish restart event to %s: %v", p.topic, err)
	}
	return nil
}
