package grid

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want error
	}{
		{"median 3", Params{Kind: FilterMedian, Window: 3}, nil},
		{"none ignores window", Params{Kind: FilterNone}, nil},
		{"clamp ok", Params{ClampEnabled: true, Lower: -5, Upper: 5, Kind: FilterMean, Window: 5}, nil},
		{"clamp inverted", Params{ClampEnabled: true, Lower: 5, Upper: -5, Kind: FilterMean, Window: 5}, ErrInvalidRange},
		{"clamp disabled ignores bounds", Params{Lower: 5, Upper: -5, Kind: FilterMean, Window: 5}, nil},
		{"even window", Params{Kind: FilterMean, Window: 4}, ErrInvalidWindow},
		{"unknown kind", Params{Kind: "max", Window: 3}, ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestApply_ClampThenSmooth(t *testing.T) {
	g := makeGrid(t, [][]float64{{1, 1, 1}, {1, 100, 1}, {1, 1, 1}})

	out, err := Apply(g, Params{ClampEnabled: true, Lower: 0, Upper: 10, Kind: FilterMean, Window: 3})
	require.NoError(t, err)
	assert.InDelta(t, 18.0/9.0, out.Height(1, 1), 1e-12)

	same, err := Apply(g, Params{Kind: FilterNone})
	require.NoError(t, err)
	assert.Same(t, g, same)
}

func TestCache_Memoizes(t *testing.T) {
	g := rampGrid(t, 5, 5)
	c := NewCache(2)
	p := Params{Kind: FilterMedian, Window: 3}

	a, err := c.Filtered(g, p)
	require.NoError(t, err)
	b, err := c.Filtered(g, p)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Len())

	_, err = c.Filtered(g, Params{Kind: FilterMean, Window: 3})
	require.NoError(t, err)
	_, err = c.Filtered(g, Params{Kind: FilterMean, Window: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	// The first entry was evicted, so a new grid is computed.
	d, err := c.Filtered(g, p)
	require.NoError(t, err)
	assert.NotSame(t, a, d)
	assert.Equal(t, a.Heights(), d.Heights())
}

func TestCache_InvalidParamsNotCached(t *testing.T) {
	c := NewCache(4)
	_, err := c.Filtered(rampGrid(t, 2, 2), Params{Kind: FilterMean, Window: 2})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Equal(t, 0, c.Len())
}

func TestLoader_LoadsOncePerRange(t *testing.T) {
	src := &fakeSource{name: "fake", samples: makeSamples(0, [][]float64{{1, 2}, {3, 4}, {5, 6}})}
	l := NewLoader(src, 4)

	var wg sync.WaitGroup
	grids := make([]*Grid, 8)
	for i := range grids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := l.Load(context.Background(), AllRows)
			assert.NoError(t, err)
			grids[i] = g
		}()
	}
	wg.Wait()

	for _, g := range grids[1:] {
		assert.Same(t, grids[0], g)
	}
	assert.LessOrEqual(t, src.calls.Load(), int32(8))

	before := src.calls.Load()
	_, err := l.Load(context.Background(), AllRows)
	require.NoError(t, err)
	assert.Equal(t, before, src.calls.Load())

	_, err = l.Load(context.Background(), Range{From: 1, To: 1})
	require.NoError(t, err)
	assert.Equal(t, before+1, src.calls.Load())
}

func TestLoader_FailuresNotCached(t *testing.T) {
	src := &fakeSource{name: "down", err: errUnreachable}
	l := NewLoader(src, 4)

	_, err := l.Load(context.Background(), AllRows)
	assert.ErrorIs(t, err, ErrDataSource)
	_, err = l.Load(context.Background(), AllRows)
	assert.ErrorIs(t, err, ErrDataSource)
	assert.Equal(t, int32(2), src.calls.Load())
}

// blockingSource holds every Samples call until release is closed and
// records whether the context it was given had ended.
type blockingSource struct {
	fakeSource
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
	canceled atomic.Bool
}

func (b *blockingSource) Samples(ctx context.Context, r Range) ([]Sample, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	if ctx.Err() != nil {
		b.canceled.Store(true)
		return nil, ctx.Err()
	}
	return b.fakeSource.Samples(ctx, r)
}

func TestLoader_CanceledCallerDoesNotFailOthers(t *testing.T) {
	src := &blockingSource{
		fakeSource: fakeSource{name: "slow", samples: makeSamples(0, [][]float64{{1, 2}, {3, 4}})},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	l := NewLoader(src, 4)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, AllRows)
		first <- err
	}()
	<-src.entered

	second := make(chan error, 1)
	var g *Grid
	go func() {
		var err error
		g, err = l.Load(context.Background(), AllRows)
		second <- err
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrDataSource)
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting for the shared load")
	}

	close(src.release)
	require.NoError(t, <-second)
	assert.Equal(t, 2, g.Rows())
	assert.False(t, src.canceled.Load(), "shared load saw the first caller's cancellation")
	assert.Equal(t, int32(1), src.calls.Load())
}
