package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestPutGet(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "k", []byte(`{"state":"HEALTHY"}`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(v) != `{"state":"HEALTHY"}` {
		t.Fatalf("unexpected get: %q %v %v", v, ok, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}
}

func TestPushCapped(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c"} {
		if err := c.PushCapped(ctx, "l", []byte(v), 2); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	got, err := c.Recent(ctx, "l", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || string(got[0]) != "c" || string(got[1]) != "b" {
		t.Fatalf("unexpected list: %q", got)
	}
	if err := c.PushCapped(ctx, "l", []byte("d"), 0); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestOpenRedis(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenRedis(ctx, RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	mr := miniredis.RunT(t)
	c, err := OpenRedis(ctx, RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = c.Close()
}
