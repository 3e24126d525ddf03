package grid

import (
	"fmt"
	"strings"
)

// ProfileKind names the direction of a profile line.
type ProfileKind string

const (
	// Transverse profiles run across the lane at a fixed lonID.
	Transverse ProfileKind = "transverse"
	// Longitudinal profiles run along the lane at a fixed transID.
	Longitudinal ProfileKind = "longitudinal"
)

// ParseProfileKind accepts the full names and the short forms "trans" and
// "lon".
func ParseProfileKind(s string) (ProfileKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transverse", "trans":
		return Transverse, nil
	case "longitudinal", "lon":
		return Longitudinal, nil
	default:
		return "", fmt.Errorf("%w: unknown profile kind %q", ErrIndexOutOfRange, s)
	}
}

// Filter discriminant values of a profile row.
const (
	FilterOriginal = "original"
	FilterFiltered = "filtered"
)

// ProfileRow is one cell of a profile line under one filter label.
type ProfileRow struct {
	ID          int64   `json:"id"`
	LonID       int     `json:"lon_id"`
	LonOffset   float64 `json:"lon_offset"`
	TransID     int     `json:"trans_id"`
	TransOffset float64 `json:"trans_offset"`
	Filter      string  `json:"filter"`
	Height      float64 `json:"height"`
}

// Profile is a long-form table for one line of the grid. Rows holds every
// original value in position order followed by every filtered value in the
// same order.
type Profile struct {
	Kind  ProfileKind  `json:"kind"`
	Index int          `json:"index"`
	Rows  []ProfileRow `json:"rows"`
}

// Len returns the number of cells on the line.
func (p *Profile) Len() int { return len(p.Rows) / 2 }

// Series returns the heights for one filter label in position order.
func (p *Profile) Series(filter string) []float64 {
	out := make([]float64, 0, p.Len())
	for _, r := range p.Rows {
		if r.Filter == filter {
			out = append(out, r.Height)
		}
	}
	return out
}

// Positions returns the physical offset along the line for each cell:
// transverse offsets for a transverse profile, longitudinal otherwise.
func (p *Profile) Positions() []float64 {
	n := p.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if p.Kind == Transverse {
			out[i] = p.Rows[i].TransOffset
		} else {
			out[i] = p.Rows[i].LonOffset
		}
	}
	return out
}

// Extract dispatches to ExtractTransverse or ExtractLongitudinal.
func Extract(orig, filtered *Grid, kind ProfileKind, index int) (*Profile, error) {
	switch kind {
	case Transverse:
		return ExtractTransverse(orig, filtered, index)
	case Longitudinal:
		return ExtractLongitudinal(orig, filtered, index)
	default:
		return nil, fmt.Errorf("%w: unknown profile kind %q", ErrIndexOutOfRange, kind)
	}
}

// ExtractTransverse returns the row at lonID from both grids, sorted by
// transID.
func ExtractTransverse(orig, filtered *Grid, lonID int) (*Profile, error) {
	if err := checkPair(orig, filtered); err != nil {
		return nil, err
	}
	r := lonID - orig.lonBase
	if r < 0 || r >= orig.rows {
		return nil, fmt.Errorf("%w: lonID %d outside [%d, %d)", ErrIndexOutOfRange, lonID, orig.lonBase, orig.lonBase+orig.rows)
	}

	p := &Profile{Kind: Transverse, Index: lonID, Rows: make([]ProfileRow, 0, 2*orig.cols)}
	for _, src := range []struct {
		g     *Grid
		label string
	}{{orig, FilterOriginal}, {filtered, FilterFiltered}} {
		for c := 0; c < orig.cols; c++ {
			p.Rows = append(p.Rows, profileRow(src.g.At(r, c), src.label))
		}
	}
	return p, nil
}

// ExtractLongitudinal returns the column at transID from both grids,
// sorted by lonID.
func ExtractLongitudinal(orig, filtered *Grid, transID int) (*Profile, error) {
	if err := checkPair(orig, filtered); err != nil {
		return nil, err
	}
	if transID < 0 || transID >= orig.cols {
		return nil, fmt.Errorf("%w: transID %d outside [0, %d)", ErrIndexOutOfRange, transID, orig.cols)
	}

	p := &Profile{Kind: Longitudinal, Index: transID, Rows: make([]ProfileRow, 0, 2*orig.rows)}
	for _, src := range []struct {
		g     *Grid
		label string
	}{{orig, FilterOriginal}, {filtered, FilterFiltered}} {
		for r := 0; r < orig.rows; r++ {
			p.Rows = append(p.Rows, profileRow(src.g.At(r, transID), src.label))
		}
	}
	return p, nil
}

func checkPair(orig, filtered *Grid) error {
	if orig == nil || filtered == nil {
		return fmt.Errorf("%w: missing grid", ErrShapeMismatch)
	}
	if !orig.SameShape(filtered) {
		return fmt.Errorf("%w: original is %dx%d from lonID %d, filtered is %dx%d from lonID %d",
			ErrShapeMismatch, orig.rows, orig.cols, orig.lonBase, filtered.rows, filtered.cols, filtered.lonBase)
	}
	return nil
}

func profileRow(s Sample, label string) ProfileRow {
	return ProfileRow{
		ID:          s.ID,
		LonID:       s.LonID,
		LonOffset:   s.LonOffset,
		TransID:     s.TransID,
		TransOffset: s.TransOffset,
		Filter:      label,
		Height:      s.Height,
	}
}
