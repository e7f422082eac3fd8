// Package ratelimit throttles login attempts per client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter reports whether one more attempt for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

var _ Limiter = (*Local)(nil)

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Local keeps one token bucket per key in process memory. A bucket holds
// limit tokens and refills at limit per window. Buckets idle for longer
// than idleTTL are evicted.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*entry
	every   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewLocal(limit int, window time.Duration) *Local {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Local{
		buckets: map[string]*entry{},
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		idleTTL: 2 * window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.janitor(window)
	return l
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1), nil
}

func (l *Local) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.evict()
		case <-l.stop:
			return
		}
	}
}

func (l *Local) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idleTTL)
	for k, e := range l.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

func (l *Local) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

// Size is the number of tracked keys.
func (l *Local) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
