package rds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func openTestRDS(t *testing.T) *RDS {
	t.Helper()

	mr := miniredis.RunT(t)
	r, err := Open(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpen_PingFailure(t *testing.T) {
	t.Parallel()

	// nothing listens here
	_, err := Open(context.Background(), Config{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Fatalf("expected ping error, got nil")
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var r *RDS
	if err := r.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	r = &RDS{}
	if err := r.Close(); err != nil {
		t.Fatalf("zero Close: %v", err)
	}
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	t.Parallel()

	r := openTestRDS(t)
	c := r.NewCache("ral:context")
	ctx := context.Background()

	in := map[string]any{"key": "timezone", "value": "Asia/Tokyo"}
	if err := c.Set(ctx, "u1", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out map[string]any
	if err := c.Get(ctx, "u1", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out["value"] != "Asia/Tokyo" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestCache_MissAndDelete(t *testing.T) {
	t.Parallel()

	r := openTestRDS(t)
	c := r.NewCache("ral:session")
	ctx := context.Background()

	var out string
	if err := c.Get(ctx, "absent", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := c.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = c.Exists(ctx, "k")
	if err != nil || ok {
		t.Fatalf("key survived delete: ok=%v err=%v", ok, err)
	}
}

func TestCache_IncrementAndTTL(t *testing.T) {
	t.Parallel()

	r := openTestRDS(t)
	c := r.NewCache("ral:ratelimit")
	ctx := context.Background()

	n, err := c.Increment(ctx, "hits", 1)
	if err != nil || n != 1 {
		t.Fatalf("first incr: n=%d err=%v", n, err)
	}
	n, err = c.Increment(ctx, "hits", 2)
	if err != nil || n != 3 {
		t.Fatalf("second incr: n=%d err=%v", n, err)
	}

	if err := c.Expire(ctx, "hits", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	ttl, err := c.TTL(ctx, "hits")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	r := openTestRDS(t)
	ctx := context.Background()

	sub := r.Subscribe(ctx, "ral:context:request")
	t.Cleanup(func() { _ = sub.Close() })

	// wait for the subscription to register before publishing
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Receive(subscribe ack): %v", err)
	}

	if err := r.Publish(ctx, "ral:context:request", []byte(`{"request_id":"r1"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != `{"request_id":"r1"}` {
			t.Fatalf("unexpected payload %q", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
}
