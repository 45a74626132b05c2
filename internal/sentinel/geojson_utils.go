package sentinel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Feature properties that name an area, in lookup order. plot_id is what the
// older forest geojsons use.
var areaKeys = []string{"area_name", "plot_id"}

var ErrAreaNotFound = errors.New("area not found")

// ProjectGeoJSONPath is where the geojson of a project lives under the data root.
func ProjectGeoJSONPath(rootPath, project string) string {
	return filepath.Join(rootPath, "data", "geojsons", project+".geojson")
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding GEOJSON %s: %w", path, err)
	}
	return fc, nil
}

func featureArea(f *geojson.Feature) (string, bool) {
	for _, key := range areaKeys {
		if v, ok := f.Properties[key]; ok && v != nil {
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

// GetAreaGeometry returns the geometry of the feature named area.
func GetAreaGeometry(path, area string) (orb.Geometry, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		if name, ok := featureArea(f); ok && name == area {
			if f.Geometry == nil {
				return nil, fmt.Errorf("area %s in %s has no geometry", area, path)
			}
			return f.Geometry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrAreaNotFound, area, path)
}

// ListAreas returns the area names of every feature in the file, in file order.
func ListAreas(path string) ([]string, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	var areas []string
	for _, f := range fc.Features {
		if name, ok := featureArea(f); ok {
			areas = append(areas, name)
		}
	}
	if len(areas) == 0 {
		return nil, fmt.Errorf("no areas found in %s", path)
	}
	return areas, nil
}

// GetCentroidLatitudeLongitude returns the area-weighted centroid of a polygonal geometry.
func GetCentroidLatitudeLongitude(g orb.Geometry) (float64, float64, error) {
	centroid, area := planar.CentroidArea(g)
	if area <= 0 {
		return 0, 0, errors.New("error getting centroid: geometry has no area")
	}
	return centroid.Y(), centroid.X(), nil
}
