package grid

import "errors"

// Errors returned by the grid package. Callers should match them with
// errors.Is; the returned errors wrap these with call-specific detail.
var (
	// ErrDataSource reports a data source that could not be queried or
	// returned rows that do not match the sample schema.
	ErrDataSource = errors.New("data source error")

	// ErrShape reports a sample table that cannot be arranged as a dense
	// row-major grid.
	ErrShape = errors.New("grid shape error")

	// ErrShapeMismatch reports two grids that were expected to share a
	// shape but do not.
	ErrShapeMismatch = errors.New("grid shape mismatch")

	// ErrInvalidRange reports clamp bounds with lower > upper or NaN bounds.
	ErrInvalidRange = errors.New("invalid clamp range")

	// ErrInvalidWindow reports a smoothing window that is not a positive odd
	// integer, or an unknown filter kind.
	ErrInvalidWindow = errors.New("invalid smoothing window")

	// ErrIndexOutOfRange reports a profile line index outside the grid.
	ErrIndexOutOfRange = errors.New("profile index out of range")
)
