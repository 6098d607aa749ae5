// Package ratelimit provides a keyed token-bucket rate limiter, generalized
// from a single global API limiter to one bucket per key (session, API key,
// or source IP) so one noisy caller can't starve the rest.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key, created lazily on first use.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
}

// New creates a keyed limiter where each key gets its own bucket refilling
// at rps tokens per second up to burst.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a request for the given key may proceed now,
// consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	return l.bucketFor(key).Allow()
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Forget drops the bucket for a key, freeing memory for keys (e.g. expired
// sessions) that will never be seen again.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len reports how many distinct keys currently have a live bucket.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
