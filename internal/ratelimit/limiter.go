package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket with a cool-off that grows on 429 responses
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu         sync.Mutex
	backoff    *backoff.Backoff
	pause      time.Duration
	pauseUntil time.Time
}

// NewLimiter creates a rate limiter.
// perMinute specifies the number of requests allowed per minute.
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	// burst: 분당 한도의 1/10, 1~5
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		name:    name,
		backoff: &backoff.Backoff{
			Min:    100 * time.Millisecond,
			Max:    2 * time.Minute,
			Factor: 2,
		},
	}
}

// Wait blocks until the cool-off has passed and a token is available
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	until := l.pauseUntil
	l.mu.Unlock()

	if d := time.Until(until); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	paused := time.Now().Before(l.pauseUntil)
	l.mu.Unlock()
	return !paused && l.limiter.Allow()
}

// SignalRateLimited should be called when a 429 response is received.
// Each call lengthens the cool-off exponentially.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pause = l.backoff.Duration()
	l.pauseUntil = time.Now().Add(l.pause)
}

// ResetBackoff clears the cool-off after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backoff.Reset()
	l.pause = 0
	l.pauseUntil = time.Time{}
}

// GetBackoff returns the current cool-off duration
func (l *Limiter) GetBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pause
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
