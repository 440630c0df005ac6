package hdrbake

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minBandSize keeps tiny images on a single goroutine.
const minBandSize = 4096

type band struct {
	lo, hi int
}

// splitBands divides [0, n) into at most workers contiguous ranges.
func splitBands(n, workers int) []band {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if limit := (n + minBandSize - 1) / minBandSize; workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}
	bands := make([]band, 0, workers)
	size := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		bands = append(bands, band{lo: lo, hi: hi})
	}
	if len(bands) == 0 {
		bands = append(bands, band{})
	}
	return bands
}

// forEachBand runs fn for every band concurrently and waits for all of them.
func forEachBand(ctx context.Context, bands []band, fn func(i int, b band) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range bands {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i, b)
		})
	}
	return g.Wait()
}
