//go:build !integration

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocal_AllowAndRefill(t *testing.T) {
	l := NewLocal(3, time.Minute)
	defer l.Close()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow(ctx, "a"); !ok {
			t.Fatalf("attempt %d should pass", i)
		}
	}
	if ok, _ := l.Allow(ctx, "a"); ok {
		t.Fatal("fourth attempt inside the window should be refused")
	}
	if ok, _ := l.Allow(ctx, "b"); !ok {
		t.Fatal("other keys are unaffected")
	}

	clock = clock.Add(20 * time.Second)
	if ok, _ := l.Allow(ctx, "a"); !ok {
		t.Fatal("one token refills every window/limit")
	}
}

func TestLocal_EvictsIdleKeys(t *testing.T) {
	l := NewLocal(1, time.Minute)
	defer l.Close()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	_, _ = l.Allow(context.Background(), "old")

	clock = clock.Add(90 * time.Second)
	_, _ = l.Allow(context.Background(), "fresh")
	clock = clock.Add(60 * time.Second)
	l.evict()

	if l.Size() != 1 {
		t.Fatalf("expected only the fresh key to remain, have %d", l.Size())
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
