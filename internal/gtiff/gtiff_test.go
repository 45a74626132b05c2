package gtiff

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

var utmMeta = raster.Metadata{
	Transform: raster.GeoTransform{300000, 10, 0, 7400000, 0, -10},
	CRS:       "EPSG:32723",
}

// writeTwoBandTiff writes a Float32 GeoTIFF with red in band 1 and NIR in band 2.
func writeTwoBandTiff(t *testing.T, path string, width, height int, red, nir []float32, nodata *float64) {
	t.Helper()
	Register()

	ds, err := godal.Create(godal.GTiff, path, 2, godal.Float32, width, height)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64(utmMeta.Transform)))
	sr, err := godal.NewSpatialRef(utmMeta.CRS)
	require.NoError(t, err)
	defer sr.Close()
	require.NoError(t, ds.SetSpatialRef(sr))

	for i, data := range [][]float32{red, nir} {
		band := ds.Bands()[i]
		if nodata != nil {
			require.NoError(t, band.SetNoData(*nodata))
		}
		require.NoError(t, band.Write(0, 0, data, width, height))
	}
	require.NoError(t, ds.Close())
}

func TestSourceReadsMappedBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.tif")
	nd := -9999.0
	writeTwoBandTiff(t, path, 2, 2,
		[]float32{0.1, 0.2, 0.1, -9999},
		[]float32{0.5, 0.6, 0.5, 0.6},
		&nd,
	)

	src := NewSource(path, SentinelBands)
	bands, err := raster.LoadBands(context.Background(), src, raster.BandRed, raster.BandNIR)
	require.NoError(t, err)

	assert.Equal(t, 2, bands.Red.Height())
	assert.Equal(t, 2, bands.Red.Width())
	assert.InDelta(t, 0.1, bands.Red.At(0, 0), 1e-6)
	assert.InDelta(t, 0.6, bands.NIR.At(1, 1), 1e-6)
	assert.True(t, math.IsNaN(bands.Red.At(1, 1)))
	assert.Equal(t, utmMeta.Transform, bands.Metadata().Transform)
	assert.Contains(t, bands.Metadata().CRS, "UTM zone 23S")
}

func TestSourceUnknownBand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.tif")
	writeTwoBandTiff(t, path, 1, 1, []float32{0.1}, []float32{0.2}, nil)

	_, err := NewSource(path, map[string]int{raster.BandRed: 1}).ReadBand(context.Background(), raster.BandNIR)
	require.ErrorIs(t, err, raster.ErrSourceRead)

	_, err = NewSource(path, map[string]int{raster.BandRed: 5}).ReadBand(context.Background(), raster.BandRed)
	require.ErrorIs(t, err, raster.ErrSourceRead)
}

func TestSourceUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tif")
	require.NoError(t, os.WriteFile(path, []byte("not a tiff"), 0o644))

	_, err := FileSource{raster.BandRed: path}.ReadBand(context.Background(), raster.BandRed)
	require.ErrorIs(t, err, raster.ErrSourceRead)

	_, err = FileSource{}.ReadBand(context.Background(), raster.BandRed)
	require.ErrorIs(t, err, raster.ErrSourceRead)
}

func TestEncoderRoundTrip(t *testing.T) {
	grid, err := raster.NewGridFromRows([][]float64{{0.667, 0.5}, {math.NaN(), -0.25}}, utmMeta)
	require.NoError(t, err)

	enc := Encoder{TempDir: t.TempDir()}
	data, err := enc.Encode(grid)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	path := filepath.Join(t.TempDir(), "ndvi.tif")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	back, err := FileSource{"ndvi": path}.ReadBand(context.Background(), "ndvi")
	require.NoError(t, err)

	assert.Equal(t, utmMeta.Transform, back.Metadata().Transform)
	assert.Contains(t, back.Metadata().CRS, "UTM zone 23S")
	assert.InDelta(t, 0.667, back.At(0, 0), 1e-6)
	assert.InDelta(t, -0.25, back.At(1, 1), 1e-6)
	assert.True(t, math.IsNaN(back.At(1, 0)))
}

func TestEncoderIsReproducible(t *testing.T) {
	grid, err := raster.NewGridFromRows([][]float64{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}, utmMeta)
	require.NoError(t, err)

	enc := Encoder{TempDir: t.TempDir()}
	first, err := enc.Encode(grid)
	require.NoError(t, err)
	second, err := enc.Encode(grid)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "image/tiff", enc.ContentType())
	assert.Equal(t, ".tif", enc.Extension())
}

func TestEncoderRejectsInvalidCRS(t *testing.T) {
	meta := utmMeta
	meta.CRS = "definitely not a crs"
	grid, err := raster.NewGridFromRows([][]float64{{0.1}}, meta)
	require.NoError(t, err)

	_, err = Encoder{TempDir: t.TempDir()}.Encode(grid)
	require.Error(t, err)
}
