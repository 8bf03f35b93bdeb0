// Package parallel splits row ranges across CPU cores.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunks returns the [start, end) ranges covering items, one per worker.
func chunks(items int) [][2]int {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	ranges := make([][2]int, 0, numWorkers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// Parallelize divides items into one contiguous range per core and runs fn
// on each range concurrently. It returns the first error, cancelling ctx for
// the remaining workers.
func Parallelize(ctx context.Context, items int, fn func(ctx context.Context, start, end int) error) error {
	if items <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range chunks(items) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, r[0], r[1])
		})
	}
	return g.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over the whole range when
// items does not exceed threshold, and in parallel otherwise.
func ParallelizeWithThreshold(ctx context.Context, items, threshold int, fn func(ctx context.Context, start, end int) error) error {
	if items <= threshold {
		if items <= 0 {
			return nil
		}
		return fn(ctx, 0, items)
	}
	return Parallelize(ctx, items, fn)
}
