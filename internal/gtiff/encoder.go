package gtiff

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/regen-insights/internal/pipeline"
	"github.com/forest-guardian/regen-insights/internal/raster"
	"github.com/forest-guardian/regen-insights/internal/utils"
)

// Encoder writes an index grid as a single-band Float32 GeoTIFF with NaN as
// the no-data value. Output bytes depend only on the grid.
type Encoder struct {
	// TempDir holds the scratch file GDAL writes to. Empty means os.TempDir().
	TempDir string
}

func (Encoder) ContentType() string { return "image/tiff" }
func (Encoder) Extension() string   { return ".tif" }

func (e Encoder) Encode(grid *raster.Grid) ([]byte, error) {
	width, height := grid.Width(), grid.Height()
	if width*height != grid.Len() {
		return nil, fmt.Errorf("%w: %d values for %dx%d grid", pipeline.ErrEncoding, grid.Len(), height, width)
	}
	Register()

	dir, err := os.MkdirTemp(e.TempDir, "ndvi-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "ndvi.tif")

	pixels := make([]float32, grid.Len())
	for i := range pixels {
		pixels[i] = float32(grid.Index(i))
	}
	meta := grid.Metadata()

	err = utils.WithGDAL(func() error {
		ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, width, height,
			godal.CreationOption("COMPRESS=DEFLATE", "PREDICTOR=3"))
		if err != nil {
			return fmt.Errorf("failed to create GeoTIFF: %w", err)
		}

		if err := ds.SetGeoTransform([6]float64(meta.Transform)); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set GeoTransform: %w", err)
		}
		if meta.CRS != "" {
			if err := setCRS(ds, meta.CRS); err != nil {
				ds.Close()
				return err
			}
		}

		band := ds.Bands()[0]
		if err := band.SetNoData(math.NaN()); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set no-data value: %w", err)
		}
		if err := band.Write(0, 0, pixels, width, height); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write raster data: %w", err)
		}
		return ds.Close()
	})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoded GeoTIFF: %w", err)
	}
	return data, nil
}

// setCRS accepts either WKT or anything OSR understands as user input
// ("EPSG:4326", PROJ strings).
func setCRS(ds *godal.Dataset, crs string) error {
	sr, err := godal.NewSpatialRef(crs)
	if err != nil {
		return fmt.Errorf("invalid CRS %q: %w", crs, err)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		return fmt.Errorf("failed to set spatial reference: %w", err)
	}
	return nil
}
