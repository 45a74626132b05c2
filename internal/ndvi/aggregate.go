package ndvi

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

// ErrEmptyAggregation is returned when a grid has no valid pixel to summarise.
var ErrEmptyAggregation = errors.New("no valid pixels to aggregate")

// Stats summarises the valid pixels of an index grid.
type Stats struct {
	Min         float64
	Max         float64
	Mean        float64
	ValidPixels int
	TotalPixels int
}

// Aggregate computes min, max and arithmetic mean over the non-NaN pixels of
// grid, in row-major order.
func Aggregate(grid *raster.Grid) (Stats, error) {
	valid := make([]float64, 0, grid.Len())
	for i := range grid.Len() {
		v := grid.Index(i)
		if math.IsNaN(v) {
			continue
		}
		valid = append(valid, v)
	}

	if len(valid) == 0 {
		return Stats{}, ErrEmptyAggregation
	}

	return Stats{
		Min:         floats.Min(valid),
		Max:         floats.Max(valid),
		Mean:        stat.Mean(valid, nil),
		ValidPixels: len(valid),
		TotalPixels: grid.Len(),
	}, nil
}
