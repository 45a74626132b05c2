// Package ndvi computes the normalized difference vegetation index from red and
// near-infrared reflectance and reduces it to a regeneration assessment.
//
// Every function in this package is pure: no I/O, no logging, no shared state.
package ndvi

import (
	"fmt"
	"math"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

// Epsilon keeps the denominator of the index away from zero when both bands are 0.
const Epsilon = 1e-6

// Compute returns (NIR - RED) / (NIR + RED + Epsilon) for every pixel, clamped
// to [-1, 1]. A pixel that is no-data in either band stays no-data (NaN).
func Compute(nir, red *raster.Grid) (*raster.Grid, error) {
	if !nir.SameShape(red) {
		return nil, fmt.Errorf("%w: nir %dx%d, red %dx%d",
			raster.ErrDimensionMismatch, nir.Height(), nir.Width(), red.Height(), red.Width())
	}

	values := make([]float64, nir.Len())
	for i := range values {
		values[i] = calculateIndex(nir.Index(i), red.Index(i))
	}

	meta := nir.Metadata()
	nd := math.NaN()
	meta.NoData = &nd

	return raster.NewGrid(nir.Height(), nir.Width(), values, meta)
}

func calculateIndex(nir, red float64) float64 {
	if math.IsNaN(nir) || math.IsNaN(red) {
		return math.NaN()
	}
	return Clamp((nir - red) / (nir + red + Epsilon))
}

// Clamp folds v into [-1, 1]. NaN produced from valid inputs (e.g. Inf-Inf)
// carries no direction and maps to 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}
