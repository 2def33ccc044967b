package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"arena/internal/common/cache"
	appErr "arena/pkg/errors"
)

const (
	healthKeyPrefix  = "supervisor:health:"
	restartKeyPrefix = "supervisor:restarts:"
)

// Sink receives health snapshots and restart history.
type Sink interface {
	PutSnapshot(ctx context.Context, snap Snapshot) error
	RecordRestart(ctx context.Context, event RestartEvent) error
}

// RedisSink stores snapshots and a bounded restart history in the cache.
type RedisSink struct {
	cache   cache.Cache
	ttl     time.Duration
	history int64
}

// NewRedisSink creates a sink. history bounds the restart list length.
func NewRedisSink(c cache.Cache, ttl time.Duration, history int) *RedisSink {
	if history <= 0 {
		history = 50
	}
	return &RedisSink{cache: c, ttl: ttl, history: int64(history)}
}

func (s *RedisSink) PutSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if err := s.cache.Put(ctx, HealthKey(snap.Service), payload, s.ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store snapshot of %s: %v", snap.Service, err)
	}
	return nil
}

func (s *RedisSink) RecordRestart(ctx context.Context, event RestartEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal restart event failed: %w", err)
	}
	if err := s.cache.PushCapped(ctx, restartKeyPrefix+event.Service, payload, s.history); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "record restart of %s: %v", event.Service, err)
	}
	return nil
}

// GetSnapshot reads back the last stored snapshot. ok is false when none exists.
func (s *RedisSink) GetSnapshot(ctx context.Context, service string) (Snapshot, bool, error) {
	raw, ok, err := s.cache.Get(ctx, HealthKey(service))
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot failed: %w", err)
	}
	return snap, true, nil
}

// RestartHistory returns the most recent restart events, newest first.
func (s *RedisSink) RestartHistory(ctx context.Context, service string) ([]RestartEvent, error) {
	raw, err := s.cache.Recent(ctx, restartKeyPrefix+service, s.history)
	if err != nil {
		return nil, err
	}
	events := make([]RestartEvent, 0, len(raw))
	for _, item := range raw {
		var ev RestartEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// HealthKey is the cache key of a service snapshot.
func HealthKey(service string) string {
	return healthKeyPrefix + service
}
