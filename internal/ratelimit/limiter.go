// Package ratelimit enforces a minimum delay between consecutive outbound
// requests of one crawl.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/bookharvest/internal/clock"
)

// Limiter spaces calls to Wait at least minDelay apart.
//
// It is a token bucket with a burst of one: the first Wait returns
// immediately and every later Wait returns no earlier than minDelay after
// the previous one returned. Reservations are taken at the injected clock's
// Now, which carries a monotonic reading, so wall clock adjustments do not
// shorten or stretch the delay.
type Limiter struct {
	clock clock.Clock

	mu       sync.Mutex
	minDelay time.Duration
	bucket   *rate.Limiter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// New returns a Limiter with the given minimum delay.
// A non-positive delay disables waiting.
func New(minDelay time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		clock:    clock.Real{},
		minDelay: minDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.bucket = rate.NewLimiter(limitFor(minDelay), 1)
	return l
}

func limitFor(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// MinDelay returns the current minimum delay.
func (l *Limiter) MinDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minDelay
}

// SetMinDelay raises the minimum delay to d. Lower values are ignored so a
// robots crawl-delay can only make the crawl slower.
func (l *Limiter) SetMinDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d <= l.minDelay {
		return
	}
	l.minDelay = d
	l.bucket.SetLimitAt(l.clock.Now(), limitFor(d))
}

// Wait blocks until the caller may issue its next request, or until ctx is
// done. On cancellation the reserved turn is handed back.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := l.clock.Now()
	reservation := l.bucket.ReserveN(now, 1)
	if !reservation.OK() {
		// Only possible with a zero burst, which New never builds.
		return nil
	}

	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := l.clock.Sleep(ctx, delay); err != nil {
		reservation.CancelAt(l.clock.Now())
		return err
	}
	return nil
}
