package grid

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Params configures the filter pipeline: an optional clamp followed by a
// smoothing pass.
type Params struct {
	ClampEnabled bool       `json:"clamp_enabled"`
	Lower        float64    `json:"lower"`
	Upper        float64    `json:"upper"`
	Kind         FilterKind `json:"kind"`
	Window       int        `json:"window"`
}

// Validate reports ErrInvalidRange or ErrInvalidWindow for bad params.
func (p Params) Validate() error {
	if p.ClampEnabled {
		if err := ValidateBounds(p.Lower, p.Upper); err != nil {
			return err
		}
	}
	if _, err := ParseFilterKind(string(p.Kind)); err != nil {
		return err
	}
	if p.Kind != FilterNone {
		if err := ValidateWindow(p.Window); err != nil {
			return err
		}
	}
	return nil
}

func (p Params) String() string {
	s := fmt.Sprintf("%s(%d)", p.Kind, p.Window)
	if p.ClampEnabled {
		s = fmt.Sprintf("clamp(%g,%g)|%s", p.Lower, p.Upper, s)
	}
	return s
}

// Apply runs the pipeline over g. It either fully succeeds or returns an
// error and no grid.
func Apply(g *Grid, p Params) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := g
	if p.ClampEnabled {
		var err error
		if out, err = Clamp(out, p.Lower, p.Upper); err != nil {
			return nil, err
		}
	}
	if p.Kind == FilterNone {
		return out, nil
	}
	return Smooth(out, p.Kind, p.Window)
}

// memo is a bounded FIFO map of computed grids with concurrent identical
// computations collapsed into one.
type memo struct {
	mu      sync.Mutex
	max     int
	entries map[string]*Grid
	order   []string
	group   singleflight.Group
}

func newMemo(max int) *memo {
	if max < 1 {
		max = 1
	}
	return &memo{max: max, entries: make(map[string]*Grid)}
}

// get returns the grid for key. A caller whose ctx ends stops waiting;
// the computation keeps running for the others.
func (m *memo) get(ctx context.Context, key string, compute func() (*Grid, error)) (*Grid, error) {
	m.mu.Lock()
	if g, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return g, nil
	}
	m.mu.Unlock()

	ch := m.group.DoChan(key, func() (interface{}, error) {
		m.mu.Lock()
		g, ok := m.entries[key]
		m.mu.Unlock()
		if ok {
			return g, nil
		}
		g, err := compute()
		if err != nil {
			return nil, err
		}
		return m.put(key, g), nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Grid), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDataSource, ctx.Err())
	}
}

// put stores g under key unless an entry already exists, and returns the
// stored grid.
func (m *memo) put(key string, g *Grid) *Grid {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok {
		return existing
	}
	for len(m.order) >= m.max {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
	m.entries[key] = g
	m.order = append(m.order, key)
	return g
}

func (m *memo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Loader memoizes grids loaded from one source, keyed by range. Failed
// loads are not cached.
type Loader struct {
	src  Source
	memo *memo
}

// NewLoader returns a Loader holding at most max grids.
func NewLoader(src Source, max int) *Loader {
	return &Loader{src: src, memo: newMemo(max)}
}

// Load returns the grid for r, reading it from the source on first use.
// Concurrent callers share one read, which is not cancelled when any one
// of them gives up.
func (l *Loader) Load(ctx context.Context, r Range) (*Grid, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	return l.memo.get(ctx, r.String(), func() (*Grid, error) {
		return Load(shared, l.src, r)
	})
}

// Source returns the underlying source.
func (l *Loader) Source() Source { return l.src }

// Cache memoizes filter pipeline results keyed by (grid identity, params).
type Cache struct {
	memo *memo
}

// NewCache returns a Cache holding at most max filtered grids.
func NewCache(max int) *Cache {
	return &Cache{memo: newMemo(max)}
}

// Filtered returns Apply(g, p), computing it at most once per key.
func (c *Cache) Filtered(g *Grid, p Params) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.memo.get(context.Background(), g.Key()+"#"+p.String(), func() (*Grid, error) {
		return Apply(g, p)
	})
}

// Len returns the number of cached grids.
func (c *Cache) Len() int { return c.memo.len() }
