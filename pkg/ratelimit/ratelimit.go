// Package ratelimit provides token bucket rate limiting for API requests.
// The pull jobs use it to pace requests against public endpoints instead of
// hammering them season after season.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter.
// It is safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      int     // maximum tokens in bucket
	tokens     float64
	lastRefill time.Time
	disabled   bool
}

// NewLimiter creates a limiter allowing rate requests per second with the
// given burst size. A rate of 0 or less disables limiting entirely.
func NewLimiter(rate float64, burst int) *Limiter {
	if rate <= 0 {
		return &Limiter{disabled: true}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.disabled {
		return nil
	}

	for {
		if l.tryTake() {
			return nil
		}

		select {
		case <-time.After(l.nextTokenIn()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow reports whether a request may proceed immediately.
func (l *Limiter) Allow() bool {
	if l.disabled {
		return true
	}
	return l.tryTake()
}

func (l *Limiter) tryTake() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastRefill = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

func (l *Limiter) nextTokenIn() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	needed := 1.0 - l.tokens
	if needed <= 0 {
		return time.Millisecond
	}
	return time.Duration(needed / l.rate * float64(time.Second))
}

// String returns a human-readable description of the limiter configuration.
func (l *Limiter) String() string {
	if l.disabled {
		return "rate limiting disabled"
	}
	return fmt.Sprintf("%.2f req/s, burst=%d", l.rate, l.burst)
}
