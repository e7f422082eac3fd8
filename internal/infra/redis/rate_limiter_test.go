//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRedis struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Close() error                   { return nil }

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = d
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.counts, k)
	}
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	rl := NewRateLimiter(fake, 2, time.Minute)

	for i, want := range []bool{true, true, false, false} {
		ok, err := rl.Allow(ctx, "login:1.2.3.4")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if ok != want {
			t.Fatalf("attempt %d: allowed = %v, want %v", i, ok, want)
		}
	}
	if fake.expires["rate_limit:login:1.2.3.4"] != time.Minute {
		t.Errorf("window not set on first hit: %v", fake.expires)
	}

	if ok, _ := rl.Allow(ctx, "login:5.6.7.8"); !ok {
		t.Error("keys must be independent")
	}

	fake.incrErr = errors.New("connection refused")
	if _, err := rl.Allow(ctx, "login:9.9.9.9"); err == nil {
		t.Error("expected redis error to propagate")
	}
}
