package output

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

var utm = raster.Metadata{
	Transform: raster.GeoTransform{300000, 10, 0, 7500000, 0, -10},
	CRS:       "EPSG:32723",
}

func testGrid(t *testing.T) *raster.Grid {
	t.Helper()
	g, err := raster.NewGridFromRows([][]float64{
		{-1, 0},
		{1, math.NaN()},
	}, utm)
	require.NoError(t, err)
	return g
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func rgba8(img image.Image, x, y int) [4]uint32 {
	r, g, b, a := img.At(x, y).RGBA()
	return [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8}
}

func TestValueToColor(t *testing.T) {
	assert.Equal(t, uint8(255), valueToColor(0).R)
	assert.Equal(t, uint8(0), valueToColor(0).G)
	assert.Equal(t, [2]uint8{255, 255}, [2]uint8{valueToColor(0.5).R, valueToColor(0.5).G})
	assert.Equal(t, [2]uint8{0, 255}, [2]uint8{valueToColor(1).R, valueToColor(1).G})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.5, normalize(0, -1, 1))
	assert.Equal(t, 0.0, normalize(-3, -1, 1))
	assert.Equal(t, 1.0, normalize(3, -1, 1))
	assert.Equal(t, 0.0, normalize(1, 1, 1))
}

func TestRenderPreview(t *testing.T) {
	img := decode(t, mustRender(t, testGrid(t), 1))

	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, [4]uint32{255, 0, 0, 255}, rgba8(img, 0, 0))
	assert.Equal(t, [4]uint32{255, 255, 0, 255}, rgba8(img, 1, 0))
	assert.Equal(t, [4]uint32{0, 255, 0, 255}, rgba8(img, 0, 1))
	assert.Equal(t, uint32(0), rgba8(img, 1, 1)[3], "no-data must be transparent")
}

func TestRenderPreviewScaled(t *testing.T) {
	img := decode(t, mustRender(t, testGrid(t), 4))

	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	assert.Equal(t, [4]uint32{0, 255, 0, 255}, rgba8(img, 1, 5))
	assert.Equal(t, uint32(0), rgba8(img, 6, 6)[3])
}

func TestRenderPreviewNil(t *testing.T) {
	_, err := RenderPreview(nil, 1)
	require.ErrorIs(t, err, ErrNilGrid)
}

func mustRender(t *testing.T, g *raster.Grid, scale int) []byte {
	t.Helper()
	data, err := RenderPreview(g, scale)
	require.NoError(t, err)
	return data
}

func TestBounds(t *testing.T) {
	b := Bounds(utm, 2, 3)
	assert.Equal(t, orb.Bound{Min: orb.Point{300000, 7499970}, Max: orb.Point{300020, 7500000}}, b)
}

func TestFootprintJSON(t *testing.T) {
	data, err := FootprintJSON(testGrid(t), map[string]interface{}{"area_name": "north"})
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string         `json:"type"`
				Coordinates [][][2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, "Polygon", f.Geometry.Type)
	assert.Contains(t, f.Geometry.Coordinates[0], [2]float64{300020, 7499980})
	assert.Equal(t, "north", f.Properties["area_name"])
	assert.Equal(t, "EPSG:32723", f.Properties["crs"])
	assert.Equal(t, float64(2), f.Properties["width"])
}

func TestSidecarNames(t *testing.T) {
	artifact := "north/20260314T122653Z_0123456789ab.tif"
	assert.Equal(t, "north/20260314T122653Z_0123456789ab.png", PreviewName(artifact))
	assert.Equal(t, "north/20260314T122653Z_0123456789ab.geojson", FootprintName(artifact))
	assert.Equal(t, "north/a.png", PreviewName("north/a.bin"))
}

func TestParseFootprint(t *testing.T) {
	data, err := FootprintJSON(testGrid(t), nil)
	require.NoError(t, err)

	b, crs, err := ParseFootprint(data)
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{300000, 7499980}, Max: orb.Point{300020, 7500000}}, b)
	assert.Equal(t, "EPSG:32723", crs)

	_, _, err = ParseFootprint([]byte(`{"type":"FeatureCollection","features":[]}`))
	assert.ErrorIs(t, err, ErrEmptyFootprint)

	_, _, err = ParseFootprint([]byte("not json"))
	assert.Error(t, err)
}
