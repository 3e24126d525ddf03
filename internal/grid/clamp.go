package grid

import (
	"fmt"
	"math"
)

// Clamp saturates every height to [lower, upper]. NaN heights are left as
// they are; a missing measurement is not an outlier.
func Clamp(g *Grid, lower, upper float64) (*Grid, error) {
	if err := ValidateBounds(lower, upper); err != nil {
		return nil, err
	}

	heights := g.Heights()
	for i, h := range heights {
		heights[i] = math.Min(math.Max(h, lower), upper)
	}
	return g.withHeights(fmt.Sprintf("%s|clamp(%g,%g)", g.key, lower, upper), heights), nil
}

// ValidateBounds checks that lower <= upper and neither is NaN.
func ValidateBounds(lower, upper float64) error {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return fmt.Errorf("%w: bounds must be numbers, got [%v, %v]", ErrInvalidRange, lower, upper)
	}
	if lower > upper {
		return fmt.Errorf("%w: lower %g > upper %g", ErrInvalidRange, lower, upper)
	}
	return nil
}
