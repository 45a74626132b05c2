// Package gtiff reads band grids from GeoTIFF files and writes index grids back
// to single-band GeoTIFFs through GDAL.
package gtiff

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/regen-insights/internal/raster"
	"github.com/forest-guardian/regen-insights/internal/utils"
)

var registerOnce sync.Once

// Register loads the GDAL drivers. It is safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// SentinelBands is the band layout of the two-band downloads produced by
// sentinel.Client: B04 first, B08 second.
var SentinelBands = map[string]int{
	raster.BandRed: 1,
	raster.BandNIR: 2,
}

// Source reads named bands from one multi-band GeoTIFF.
type Source struct {
	Path string
	// Bands maps a band name to its 1-based index in the file.
	Bands map[string]int
}

func NewSource(path string, bands map[string]int) *Source {
	return &Source{Path: path, Bands: bands}
}

func (s *Source) ReadBand(ctx context.Context, name string) (*raster.Grid, error) {
	idx, ok := s.Bands[name]
	if !ok {
		return nil, fmt.Errorf("%w: band %q is not mapped for %s (known: %v)", raster.ErrSourceRead, name, s.Path, bandNames(s.Bands))
	}
	return readGrid(ctx, s.Path, idx)
}

// FileSource reads each named band from the first band of its own file.
type FileSource map[string]string

func (f FileSource) ReadBand(ctx context.Context, name string) (*raster.Grid, error) {
	path, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: no file for band %q", raster.ErrSourceRead, name)
	}
	return readGrid(ctx, path, 1)
}

func readGrid(ctx context.Context, path string, bandIndex int) (*raster.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	Register()

	var grid *raster.Grid
	err := utils.WithGDAL(func() error {
		ds, err := godal.Open(path, godal.RasterOnly(), godal.ErrLogger(ignoreWarnings))
		if err != nil {
			return fmt.Errorf("%w: failed to open %s: %w", raster.ErrSourceRead, path, err)
		}
		defer ds.Close()

		bands := ds.Bands()
		if bandIndex < 1 || bandIndex > len(bands) {
			return fmt.Errorf("%w: %s has %d bands, band %d requested", raster.ErrSourceRead, path, len(bands), bandIndex)
		}
		band := bands[bandIndex-1]

		geoTransform, err := ds.GeoTransform()
		if err != nil {
			return fmt.Errorf("%w: failed to get GeoTransform of %s: %w", raster.ErrSourceRead, path, err)
		}

		width := ds.Structure().SizeX
		height := ds.Structure().SizeY
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return fmt.Errorf("%w: failed to read raster data from %s: %w", raster.ErrSourceRead, path, err)
		}

		meta := raster.Metadata{
			Transform: raster.GeoTransform(geoTransform),
			CRS:       ds.Projection(),
		}
		if nd, ok := band.NoData(); ok {
			meta.NoData = &nd
		}

		grid, err = raster.NewGrid(height, width, data, meta)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", raster.ErrSourceRead, path, err)
		}
		return nil
	})
	return grid, err
}

func ignoreWarnings(ec godal.ErrorCategory, code int, msg string) error {
	if ec == godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL error %d: %s", code, msg)
}

func bandNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
