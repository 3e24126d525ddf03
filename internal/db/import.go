package db

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/rutting.report/internal/grid"
)

// ErrMissingHeight rejects an import containing a sample without a height.
// Stored heights are NOT NULL; gaps are only tolerated in tables read from
// elsewhere.
var ErrMissingHeight = errors.New("sample has no height")

// ImportSamples writes samples into table in a single transaction,
// updating rows with the same id. table must have a unique id column. Any
// failure rolls back the whole batch. It returns the number of rows
// written.
func (db *DB) ImportSamples(ctx context.Context, table string, samples []grid.Sample) (int, error) {
	if err := ValidateTableName(table); err != nil {
		return 0, err
	}
	for _, s := range samples {
		if math.IsNaN(s.Height) {
			return 0, fmt.Errorf("%w: sample %d (lonID=%d, transID=%d)", ErrMissingHeight, s.ID, s.LonID, s.TransID)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO "%s" (id, lonID, lonOFFSET, transID, transOFFSET, height)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lonID = excluded.lonID,
			lonOFFSET = excluded.lonOFFSET,
			transID = excluded.transID,
			transOFFSET = excluded.transOFFSET,
			height = excluded.height`, table))
	if err != nil {
		return 0, fmt.Errorf("prepare import into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, s.ID, s.LonID, s.LonOffset, s.TransID, s.TransOffset, s.Height); err != nil {
			return 0, fmt.Errorf("insert sample %d: %w", s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(samples), nil
}

// ClearSamples deletes every row of table.
func (db *DB) ClearSamples(ctx context.Context, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"`, table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}
