package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles requests against one quote endpoint. The A-share
// endpoints have no published quota but start serving empty payloads when
// hammered, so a 429-style backoff is kept alongside the token bucket.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu      sync.Mutex
	backoff time.Duration
	maxWait time.Duration
}

// NewLimiter creates a limiter allowing perMinute requests per minute
// with a small burst
func NewLimiter(name string, perMinute int) *Limiter {
	rps := float64(perMinute) / 60.0
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		backoff: 100 * time.Millisecond,
		maxWait: 2 * time.Minute,
	}
}

// Wait blocks until a token is available or the context is cancelled.
// When the endpoint has signalled throttling, the current backoff is
// slept first.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	penalty := time.Duration(0)
	if l.backoff > 100*time.Millisecond {
		penalty = l.backoff
	}
	l.mu.Unlock()

	if penalty > 0 {
		select {
		case <-time.After(penalty):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SignalThrottled doubles the backoff; call it when the endpoint starts
// refusing or degrading responses
func (l *Limiter) SignalThrottled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff *= 2
	if l.backoff > l.maxWait {
		l.backoff = l.maxWait
	}
}

// Reset restores the base backoff after a successful request
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = 100 * time.Millisecond
}

// Backoff returns the current backoff duration
func (l *Limiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
