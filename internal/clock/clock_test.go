package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealSleep(t *testing.T) {
	t.Parallel()

	t.Run("returns after the duration", func(t *testing.T) {
		t.Parallel()
		var c Real
		start := c.Now()
		if err := c.Sleep(context.Background(), 10*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := c.Now().Sub(start); elapsed < 10*time.Millisecond {
			t.Errorf("expected at least 10ms, got %v", elapsed)
		}
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Real{}.Sleep(ctx, time.Hour)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("non-positive duration does not block", func(t *testing.T) {
		t.Parallel()
		if err := (Real{}).Sleep(context.Background(), 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFake(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if err := f.Sleep(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Sleep(context.Background(), 4*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Advance(time.Second)

	if got := f.Now().Sub(start); got != 7*time.Second {
		t.Errorf("expected 7s elapsed, got %v", got)
	}
	if got := f.Slept(); got != 6*time.Second {
		t.Errorf("expected 6s slept, got %v", got)
	}
	if got := f.Sleeps(); len(got) != 2 || got[0] != 2*time.Second || got[1] != 4*time.Second {
		t.Errorf("unexpected sleeps %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(f.Sleeps()) != 2 {
		t.Error("cancelled sleep should not be recorded")
	}
}
