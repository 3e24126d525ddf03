package grid

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ProfileColumns is the header of an exported profile.
var ProfileColumns = []string{
	ColumnID, ColumnLonID, ColumnLonOffset, ColumnTransID, ColumnTransOffset, ColumnFilter, ColumnHeight,
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteGridCSV writes one row per sample with a SampleColumns header.
func WriteGridCSV(w io.Writer, g *Grid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SampleColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range g.samples {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			strconv.Itoa(s.LonID),
			formatFloat(s.LonOffset),
			strconv.Itoa(s.TransID),
			formatFloat(s.TransOffset),
			formatFloat(s.Height),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write sample %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProfileCSV writes the profile in long form with a ProfileColumns
// header.
func WriteProfileCSV(w io.Writer, p *Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ProfileColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range p.Rows {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.LonID),
			formatFloat(r.LonOffset),
			strconv.Itoa(r.TransID),
			formatFloat(r.TransOffset),
			r.Filter,
			formatFloat(r.Height),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write profile row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvTable maps header names (case-insensitive, surrounding space
// trimmed) to column positions.
type csvTable struct {
	r   *csv.Reader
	pos map[string]int
}

func newCSVTable(r io.Reader, required []string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := pos[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("missing column %q in header %v", col, header)
		}
	}
	cr.FieldsPerRecord = len(header)
	return &csvTable{r: cr, pos: pos}, nil
}

// next returns the next record, or io.EOF.
func (t *csvTable) next() ([]string, error) { return t.r.Read() }

func (t *csvTable) field(rec []string, col string) string {
	return strings.TrimSpace(rec[t.pos[strings.ToLower(col)]])
}

func (t *csvTable) parseInt64(rec []string, col string) (int64, error) {
	v, err := strconv.ParseInt(t.field(rec, col), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (t *csvTable) parseInt(rec []string, col string) (int, error) {
	v, err := strconv.Atoi(t.field(rec, col))
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (t *csvTable) parseFloat(rec []string, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.field(rec, col), 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (t *csvTable) sample(rec []string) (Sample, error) {
	var s Sample
	var err error
	if s.ID, err = t.parseInt64(rec, ColumnID); err != nil {
		return s, err
	}
	if s.LonID, err = t.parseInt(rec, ColumnLonID); err != nil {
		return s, err
	}
	if s.LonOffset, err = t.parseFloat(rec, ColumnLonOffset); err != nil {
		return s, err
	}
	if s.TransID, err = t.parseInt(rec, ColumnTransID); err != nil {
		return s, err
	}
	if s.TransOffset, err = t.parseFloat(rec, ColumnTransOffset); err != nil {
		return s, err
	}
	if s.Height, err = t.parseFloat(rec, ColumnHeight); err != nil {
		return s, err
	}
	return s, nil
}

// ReadSamplesCSV parses a long-form sample table. Columns are matched by
// header name, so extra columns (such as a pandas index) are ignored.
func ReadSamplesCSV(r io.Reader) ([]Sample, error) {
	t, err := newCSVTable(r, SampleColumns)
	if err != nil {
		return nil, err
	}
	var out []Sample
	for line := 2; ; line++ {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s, err := t.sample(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, s)
	}
}

// ReadProfileCSV parses the output of WriteProfileCSV back into rows.
func ReadProfileCSV(r io.Reader) ([]ProfileRow, error) {
	t, err := newCSVTable(r, ProfileColumns)
	if err != nil {
		return nil, err
	}
	var out []ProfileRow
	for line := 2; ; line++ {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s, err := t.sample(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ProfileRow{
			ID:          s.ID,
			LonID:       s.LonID,
			LonOffset:   s.LonOffset,
			TransID:     s.TransID,
			TransOffset: s.TransOffset,
			Filter:      t.field(rec, ColumnFilter),
			Height:      s.Height,
		})
	}
}
