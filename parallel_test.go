package hdrbake

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBands(t *testing.T) {
	for _, tc := range []struct {
		n, workers int
		want       []band
	}{
		{n: 0, workers: 4, want: []band{{}}},
		{n: 100, workers: 8, want: []band{{0, 100}}},
		{n: 3 * minBandSize, workers: 2, want: []band{{0, 6144}, {6144, 12288}}},
		{n: 3 * minBandSize, workers: 16, want: []band{{0, 4096}, {4096, 8192}, {8192, 12288}}},
		{n: 10000, workers: 3, want: []band{{0, 3334}, {3334, 6668}, {6668, 10000}}},
	} {
		assert.Equal(t, tc.want, splitBands(tc.n, tc.workers), "n=%d workers=%d", tc.n, tc.workers)
	}

	// Bands cover the range without gaps.
	bands := splitBands(1<<20, 0)
	require.NotEmpty(t, bands)
	assert.Equal(t, 0, bands[0].lo)
	assert.Equal(t, 1<<20, bands[len(bands)-1].hi)
	for i := 1; i < len(bands); i++ {
		assert.Equal(t, bands[i-1].hi, bands[i].lo)
	}
}

func TestForEachBand(t *testing.T) {
	var sum int64
	bands := splitBands(5*minBandSize, 5)
	require.NoError(t, forEachBand(context.Background(), bands, func(_ int, b band) error {
		atomic.AddInt64(&sum, int64(b.hi-b.lo))
		return nil
	}))
	assert.Equal(t, int64(5*minBandSize), sum)

	boom := errors.New("boom")
	err := forEachBand(context.Background(), bands, func(i int, _ band) error {
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.Equal(t, boom, err)
}
