package collector

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	t.Run("SucceedsFirstAttempt", func(t *testing.T) {
		b := newBase("test", nil)
		b.baseDelay = time.Millisecond

		calls := 0
		items, err := b.retry(context.Background(), "q", func(ctx context.Context) ([]Item, error) {
			calls++
			return []Item{{Title: "one"}}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if len(items) != 1 {
			t.Errorf("expected 1 item, got %d", len(items))
		}
	})

	t.Run("RecoversAfterTransientFailures", func(t *testing.T) {
		b := newBase("test", nil)
		b.baseDelay = time.Millisecond

		calls := 0
		items, err := b.retry(context.Background(), "q", func(ctx context.Context) ([]Item, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient")
			}
			return []Item{{Title: "recovered"}}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if len(items) != 1 || items[0].Title != "recovered" {
			t.Errorf("unexpected items: %+v", items)
		}
	})

	t.Run("ExhaustsAndReturnsLastError", func(t *testing.T) {
		b := newBase("test", nil)
		b.baseDelay = time.Millisecond

		calls := 0
		sentinel := errors.New("still broken")
		_, err := b.retry(context.Background(), "q", func(ctx context.Context) ([]Item, error) {
			calls++
			return nil, sentinel
		})
		if calls != b.maxRetries {
			t.Errorf("expected %d calls, got %d", b.maxRetries, calls)
		}
		if !errors.Is(err, sentinel) {
			t.Errorf("expected last error to propagate, got %v", err)
		}
	})

	t.Run("EmptyResultIsNotRetried", func(t *testing.T) {
		b := newBase("test", nil)
		b.baseDelay = time.Millisecond

		calls := 0
		items, err := b.retry(context.Background(), "q", func(ctx context.Context) ([]Item, error) {
			calls++
			return []Item{}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("empty result should not retry; got %d calls", calls)
		}
		if len(items) != 0 {
			t.Errorf("expected empty result, got %+v", items)
		}
	})

	t.Run("HonorsContextCancellation", func(t *testing.T) {
		b := newBase("test", nil)
		b.baseDelay = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := b.retry(ctx, "q", func(ctx context.Context) ([]Item, error) {
				return nil, errors.New("fail")
			})
			done <- err
		}()

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("retry did not return after cancellation")
		}
	})
}

func TestOptionsLimitOr(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		def   int
		want  int
	}{
		{"ZeroUsesDefault", 0, 10, 10},
		{"NegativeUsesDefault", -1, 5, 5},
		{"PositiveWins", 3, 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Options{Limit: tt.limit}.limitOr(tt.def)
			if got != tt.want {
				t.Errorf("limitOr(%d) with Limit=%d = %d, want %d", tt.def, tt.limit, got, tt.want)
			}
		})
	}
}

func TestBackoffDelays(t *testing.T) {
	b := newBase("test", nil)
	want := []time.Duration{time.Second, 2 * time.Second}
	for attempt, expected := range want {
		got := b.baseDelay * (1 << attempt)
		if got != expected {
			t.Errorf("attempt %d: delay %v, want %v", attempt, got, expected)
		}
	}
}
