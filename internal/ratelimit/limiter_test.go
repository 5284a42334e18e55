package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLimiter_AdmitsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "u1"); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "u1"); !errors.Is(err, ErrExhausted) {
		t.Errorf("over-limit err = %v, want ErrExhausted", err)
	}
}

func TestMemoryLimiter_KeysIsolated(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if err := l.Allow(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow(ctx, "u2"); err != nil {
		t.Errorf("u2 rejected by u1's usage: %v", err)
	}
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if err := l.Allow(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow(ctx, "u1"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}

	now = now.Add(time.Minute)
	if err := l.Allow(ctx, "u1"); err != nil {
		t.Errorf("rejected after window reset: %v", err)
	}
}
