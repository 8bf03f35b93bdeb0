package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		seen := make([]int32, items)
		err := Parallelize(context.Background(), items, func(_ context.Context, start, end int) error {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("items=%d: unexpected error %v", items, err)
		}
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, n)
			}
		}
	}
}

func TestParallelizeReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := Parallelize(context.Background(), 100, func(_ context.Context, start, _ int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestParallelizeWithThresholdRunsSequentially(t *testing.T) {
	calls := 0
	err := ParallelizeWithThreshold(context.Background(), 10, 64, func(_ context.Context, start, end int) error {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("range = [%d, %d), want [0, 10)", start, end)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestParallelizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Parallelize(ctx, 100, func(context.Context, int, int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
