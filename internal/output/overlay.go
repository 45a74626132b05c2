package output

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrEmptyFootprint = errors.New("footprint has no features")

// PreviewName is the storage name of the PNG stored beside artifact.
func PreviewName(artifact string) string {
	return strings.TrimSuffix(artifact, path.Ext(artifact)) + ".png"
}

// FootprintName is the storage name of the GeoJSON stored beside artifact.
func FootprintName(artifact string) string {
	return strings.TrimSuffix(artifact, path.Ext(artifact)) + ".geojson"
}

// ParseFootprint reads back the bounds and CRS written by FootprintJSON.
func ParseFootprint(data []byte) (orb.Bound, string, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return orb.Bound{}, "", fmt.Errorf("failed to parse footprint: %w", err)
	}
	if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
		return orb.Bound{}, "", ErrEmptyFootprint
	}
	f := fc.Features[0]
	crs, _ := f.Properties["crs"].(string)
	return f.Geometry.Bound(), crs, nil
}
