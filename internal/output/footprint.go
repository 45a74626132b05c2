package output

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

const FootprintContentType = "application/geo+json"

// Bounds returns the extent of a width x height raster in its own CRS.
func Bounds(meta raster.Metadata, width, height int) orb.Bound {
	x, y := meta.Transform.Apply(0, 0)
	b := orb.Point{x, y}.Bound()
	// Rotated transforms put the extremes on any corner.
	for _, c := range [][2]float64{{float64(width), 0}, {0, float64(height)}, {float64(width), float64(height)}} {
		x, y = meta.Transform.Apply(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Footprint returns a feature collection holding the grid bounds as a
// polygon. props are copied onto the feature along with the CRS.
func Footprint(grid *raster.Grid, props map[string]interface{}) (*geojson.FeatureCollection, error) {
	if grid == nil {
		return nil, ErrNilGrid
	}
	meta := grid.Metadata()
	f := geojson.NewFeature(Bounds(meta, grid.Width(), grid.Height()).ToPolygon())
	for k, v := range props {
		f.Properties[k] = v
	}
	f.Properties["crs"] = meta.CRS
	f.Properties["width"] = grid.Width()
	f.Properties["height"] = grid.Height()

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

// FootprintJSON is Footprint marshalled to bytes.
func FootprintJSON(grid *raster.Grid, props map[string]interface{}) ([]byte, error) {
	fc, err := Footprint(grid, props)
	if err != nil {
		return nil, err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal footprint: %w", err)
	}
	return data, nil
}
