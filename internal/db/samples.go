package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/banshee-data/rutting.report/internal/grid"
)

// DefaultSamplesTable is the table created by the migrations.
const DefaultSamplesTable = "rutting_samples"

// Survey exports keep their original table names, which may start with a
// digit (e.g. 20mph_Grided_data_DistanceCorrected_longformat).
var tableNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateTableName rejects anything that could not be a plain SQLite
// identifier. Table names are interpolated into SQL, never bound.
func ValidateTableName(name string) error {
	if !tableNameRE.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// SampleSource reads long-form samples from one table. It implements
// grid.Source.
type SampleSource struct {
	db    *DB
	table string
}

// SampleSource returns a source over table.
func (db *DB) SampleSource(table string) (*SampleSource, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return &SampleSource{db: db, table: table}, nil
}

// Name implements grid.Source.
func (s *SampleSource) Name() string { return "sqlite:" + s.table }

// Table returns the table name.
func (s *SampleSource) Table() string { return s.table }

// Samples implements grid.Source. Rows come back ordered by lonID then
// transID. The table must have exactly the sample columns; a NULL height
// reads as NaN.
func (s *SampleSource) Samples(ctx context.Context, r grid.Range) ([]grid.Sample, error) {
	query := fmt.Sprintf(`SELECT * FROM "%s" WHERE lonID >= ?`, s.table)
	args := []interface{}{r.From}
	if r.To >= 0 {
		query += ` AND lonID <= ?`
		args = append(args, r.To)
	}
	query += ` ORDER BY lonID, transID`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", grid.ErrDataSource, s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns of %s: %v", grid.ErrDataSource, s.table, err)
	}
	if err := grid.ValidateColumns(cols); err != nil {
		return nil, fmt.Errorf("table %s: %w", s.table, err)
	}

	var (
		sample grid.Sample
		height sql.NullFloat64
	)
	dest := make([]interface{}, len(cols))
	for i, c := range cols {
		switch strings.ToLower(c) {
		case strings.ToLower(grid.ColumnID):
			dest[i] = &sample.ID
		case strings.ToLower(grid.ColumnLonID):
			dest[i] = &sample.LonID
		case strings.ToLower(grid.ColumnLonOffset):
			dest[i] = &sample.LonOffset
		case strings.ToLower(grid.ColumnTransID):
			dest[i] = &sample.TransID
		case strings.ToLower(grid.ColumnTransOffset):
			dest[i] = &sample.TransOffset
		case strings.ToLower(grid.ColumnHeight):
			dest[i] = &height
		}
	}

	var out []grid.Sample
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", grid.ErrDataSource, s.table, err)
		}
		sample.Height = math.NaN()
		if height.Valid {
			sample.Height = height.Float64
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", grid.ErrDataSource, s.table, err)
	}
	return out, nil
}

// Extent describes what a sample table holds, for bounding UI inputs.
type Extent struct {
	Count      int `json:"count"`
	MinLonID   int `json:"min_lon_id"`
	MaxLonID   int `json:"max_lon_id"`
	MaxTransID int `json:"max_trans_id"`
}

// Extent reports the sample count and index ranges of the table. An empty
// table is ErrDataSource.
func (s *SampleSource) Extent(ctx context.Context) (Extent, error) {
	var (
		e                      Extent
		minLon, maxLon, maxTrn sql.NullInt64
	)
	query := fmt.Sprintf(`SELECT COUNT(*), MIN(lonID), MAX(lonID), MAX(transID) FROM "%s"`, s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&e.Count, &minLon, &maxLon, &maxTrn); err != nil {
		return e, fmt.Errorf("%w: extent of %s: %v", grid.ErrDataSource, s.table, err)
	}
	if e.Count == 0 {
		return e, fmt.Errorf("%w: table %s is empty", grid.ErrDataSource, s.table)
	}
	e.MinLonID = int(minLon.Int64)
	e.MaxLonID = int(maxLon.Int64)
	e.MaxTransID = int(maxTrn.Int64)
	return e, nil
}
