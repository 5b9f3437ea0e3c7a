package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/bookharvest/internal/clock"
)

var epoch = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

// near absorbs float rounding inside the token bucket.
func near(got, want time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < time.Millisecond
}

func TestLimiterWait(t *testing.T) {
	t.Parallel()

	t.Run("first call does not wait", func(t *testing.T) {
		t.Parallel()
		fake := clock.NewFake(epoch)
		l := New(time.Second, WithClock(fake))

		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fake.Slept() != 0 {
			t.Errorf("expected no wait, slept %v", fake.Slept())
		}
	})

	t.Run("back to back calls are spaced by the min delay", func(t *testing.T) {
		t.Parallel()
		fake := clock.NewFake(epoch)
		l := New(time.Second, WithClock(fake))

		for i := 0; i < 4; i++ {
			if err := l.Wait(context.Background()); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
		}

		sleeps := fake.Sleeps()
		if len(sleeps) != 3 {
			t.Fatalf("expected 3 sleeps, got %v", sleeps)
		}
		for i, d := range sleeps {
			if d != time.Second {
				t.Errorf("sleep %d: expected 1s, got %v", i, d)
			}
		}
	})

	t.Run("time spent elsewhere counts towards the delay", func(t *testing.T) {
		t.Parallel()
		fake := clock.NewFake(epoch)
		l := New(time.Second, WithClock(fake))

		_ = l.Wait(context.Background())
		fake.Advance(300 * time.Millisecond)
		_ = l.Wait(context.Background())

		sleeps := fake.Sleeps()
		if len(sleeps) != 1 || !near(sleeps[0], 700*time.Millisecond) {
			t.Errorf("expected a single 700ms sleep, got %v", sleeps)
		}
	})

	t.Run("no wait once the delay has elapsed", func(t *testing.T) {
		t.Parallel()
		fake := clock.NewFake(epoch)
		l := New(time.Second, WithClock(fake))

		_ = l.Wait(context.Background())
		fake.Advance(5 * time.Second)
		_ = l.Wait(context.Background())

		if fake.Slept() != 0 {
			t.Errorf("expected no sleep, got %v", fake.Sleeps())
		}
	})

	t.Run("zero delay disables waiting", func(t *testing.T) {
		t.Parallel()
		fake := clock.NewFake(epoch)
		l := New(0, WithClock(fake))

		for i := 0; i < 5; i++ {
			_ = l.Wait(context.Background())
		}
		if fake.Slept() != 0 {
			t.Errorf("expected no sleep, got %v", fake.Sleeps())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		l := New(time.Second, WithClock(clock.NewFake(epoch)))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLimiterSetMinDelay(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	l := New(time.Second, WithClock(fake))

	l.SetMinDelay(500 * time.Millisecond)
	if l.MinDelay() != time.Second {
		t.Errorf("lower delay must be ignored, got %v", l.MinDelay())
	}

	l.SetMinDelay(3 * time.Second)
	if l.MinDelay() != 3*time.Second {
		t.Fatalf("expected 3s, got %v", l.MinDelay())
	}

	_ = l.Wait(context.Background())
	_ = l.Wait(context.Background())

	sleeps := fake.Sleeps()
	if len(sleeps) != 1 || !near(sleeps[0], 3*time.Second) {
		t.Errorf("expected a single 3s sleep, got %v", sleeps)
	}
}

func TestLimiterRealClock(t *testing.T) {
	t.Parallel()

	l := New(20 * time.Millisecond)
	start := time.Now()
	_ = l.Wait(context.Background())
	_ = l.Wait(context.Background())
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("expected the second call to wait, elapsed %v", elapsed)
	}
}
