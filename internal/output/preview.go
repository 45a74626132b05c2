// Package output renders the display-layer views of an NDVI grid: a PNG
// overlay and a GeoJSON footprint of its bounds.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

const PreviewContentType = "image/png"

var ErrNilGrid = errors.New("nil grid")

// normalize maps value from [min, max] onto [0, 1], clamping outside values.
func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

// valueToColor ramps red (0) through yellow (0.5) to green (1).
func valueToColor(norm float64) color.NRGBA {
	var r, g uint8
	if norm <= 0.5 {
		ratio := norm / 0.5
		r = 255
		g = uint8(255 * ratio)
	} else {
		ratio := (norm - 0.5) / 0.5
		r = uint8(255 * (1 - ratio))
		g = 255
	}
	return color.NRGBA{R: r, G: g, B: 0, A: 255}
}

// RenderPreview draws grid as a PNG, scale screen pixels per raster pixel.
// NDVI -1..1 maps onto the red-yellow-green ramp; no-data is transparent.
func RenderPreview(grid *raster.Grid, scale int) ([]byte, error) {
	if grid == nil {
		return nil, ErrNilGrid
	}
	if scale < 1 {
		scale = 1
	}

	dc := gg.NewContext(grid.Width()*scale, grid.Height()*scale)
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			v := grid.At(y, x)
			if math.IsNaN(v) {
				continue
			}
			c := valueToColor(normalize(v, -1, 1))
			dc.SetRGBA255(int(c.R), int(c.G), int(c.B), int(c.A))
			if scale == 1 {
				dc.SetPixel(x, y)
				continue
			}
			dc.DrawRectangle(float64(x*scale), float64(y*scale), float64(scale), float64(scale))
			dc.Fill()
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
