package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/regen-insights/internal/ndvi"
	"github.com/forest-guardian/regen-insights/internal/raster"
)

var (
	testMeta = raster.Metadata{
		Transform: raster.GeoTransform{300000, 10, 0, 7400000, 0, -10},
		CRS:       "EPSG:32723",
	}
	fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("BRT", -3*3600))
)

// float32Encoder writes shape + little-endian float32 pixels.
type float32Encoder struct {
	calls int
	err   error
}

func (e *float32Encoder) Encode(g *raster.Grid) ([]byte, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, [2]int32{int32(g.Height()), int32(g.Width())})
	for _, v := range g.Values() {
		_ = binary.Write(&buf, binary.LittleEndian, float32(v))
	}
	return buf.Bytes(), nil
}

func (e *float32Encoder) ContentType() string { return "application/octet-stream" }
func (e *float32Encoder) Extension() string   { return ".bin" }

func source(t *testing.T, red, nir [][]float64) raster.MemorySource {
	t.Helper()
	r, err := raster.NewGridFromRows(red, testMeta)
	require.NoError(t, err)
	n, err := raster.NewGridFromRows(nir, testMeta)
	require.NoError(t, err)
	return raster.MemorySource{raster.BandRed: r, raster.BandNIR: n}
}

func config(enc Encoder) Config {
	return Config{
		AreaName: "Fazenda Boa Vista / Talhão 3",
		Encoder:  enc,
		Now:      func() time.Time { return fixedNow },
	}
}

func TestRunScenarioA(t *testing.T) {
	src := source(t,
		[][]float64{{0.1, 0.2}, {0.1, 0.2}},
		[][]float64{{0.5, 0.6}, {0.5, 0.6}},
	)
	project := "proj-42"
	cfg := config(&float32Encoder{})
	cfg.ProjectID = &project

	var stages []Stage
	cfg.OnStage = func(s Stage) { stages = append(stages, s) }

	result, err := Run(context.Background(), cfg, src)
	require.NoError(t, err)

	rec := result.Record
	assert.InDelta(t, 0.583, rec.MeanNDVI, 1e-3)
	assert.InDelta(t, 0.5, rec.MinNDVI, 1e-3)
	assert.InDelta(t, 0.667, rec.MaxNDVI, 1e-3)
	assert.Equal(t, 79, rec.RegenScore)
	assert.Equal(t, "Healthy: strong vegetation cover — continue regenerative practices.", rec.Insight)
	assert.Equal(t, "Fazenda Boa Vista / Talhão 3", rec.AreaName)
	assert.Equal(t, &project, rec.ProjectID)
	assert.Equal(t, fixedNow.UTC(), rec.ComputedAt)
	assert.Equal(t, result.Artifact.Name, rec.StoragePath)

	assert.Regexp(t, `^fazenda-boa-vista-talh-o-3/20260314T122653Z_[0-9a-f]{12}\.bin$`, result.Artifact.Name)
	assert.Len(t, result.Artifact.SHA256, 64)
	assert.Equal(t, "application/octet-stream", result.Artifact.ContentType)
	assert.Equal(t, Stages, stages)

	require.NotNil(t, result.Index)
	assert.InDelta(t, 0.6667, result.Index.At(0, 0), 1e-3)
	assert.Equal(t, testMeta.Transform, result.Index.Metadata().Transform)
}

func TestRunScenarioB(t *testing.T) {
	src := source(t, [][]float64{{0, 0}}, [][]float64{{0, 0}})

	result, err := Run(context.Background(), config(&float32Encoder{}), src)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Record.MeanNDVI)
	assert.Equal(t, 50, result.Record.RegenScore)
	assert.Equal(t, "Critical: vegetation stress — recommend cover crops or mulching.", result.Record.Insight)
}

func TestRunAllNoData(t *testing.T) {
	nan := math.NaN()
	src := source(t, [][]float64{{nan, nan}, {nan, nan}}, [][]float64{{nan, nan}, {nan, nan}})
	enc := &float32Encoder{}

	result, err := Run(context.Background(), config(enc), src)
	require.Error(t, err)
	assert.Nil(t, result)
	require.ErrorIs(t, err, ndvi.ErrEmptyAggregation)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAggregated, stageErr.Stage)
	assert.Zero(t, enc.calls, "nothing may be encoded after a failed aggregation")
}

func TestRunDimensionMismatch(t *testing.T) {
	red, err := raster.NewGrid(2, 2, make([]float64, 4), testMeta)
	require.NoError(t, err)
	nir, err := raster.NewGrid(3, 3, make([]float64, 9), testMeta)
	require.NoError(t, err)
	enc := &float32Encoder{}

	_, err = Run(context.Background(), config(enc), raster.MemorySource{raster.BandRed: red, raster.BandNIR: nir})
	require.ErrorIs(t, err, raster.ErrDimensionMismatch)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLoaded, stageErr.Stage)
	assert.Zero(t, enc.calls)
}

func TestRunEncoderFailure(t *testing.T) {
	src := source(t, [][]float64{{0.1}}, [][]float64{{0.4}})

	_, err := Run(context.Background(), config(&float32Encoder{err: errors.New("driver missing")}), src)
	require.ErrorIs(t, err, ErrEncoding)
	assert.Contains(t, err.Error(), "driver missing")
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := source(t, [][]float64{{0.1}}, [][]float64{{0.4}})
	_, err := Run(ctx, config(&float32Encoder{}), src)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config(&float32Encoder{})
	cfg.OnStage = func(s Stage) {
		if s == StageIndexed {
			cancel()
		}
	}

	src := source(t, [][]float64{{0.1}}, [][]float64{{0.4}})
	_, err := Run(ctx, cfg, src)
	require.ErrorIs(t, err, context.Canceled)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAggregated, stageErr.Stage)
}

func TestRunIsReproducible(t *testing.T) {
	src := source(t,
		[][]float64{{0.03, 0.12, 0.2}, {0.08, 0.3, 0.01}},
		[][]float64{{0.41, 0.5, 0.22}, {0.6, 0.29, 0.4}},
	)

	first, err := Run(context.Background(), config(&float32Encoder{}), src)
	require.NoError(t, err)
	second, err := Run(context.Background(), config(&float32Encoder{}), src)
	require.NoError(t, err)

	assert.Equal(t, first.Artifact.Data, second.Artifact.Data)
	assert.Equal(t, first.Artifact.Name, second.Artifact.Name)
	assert.Equal(t, first.Record, second.Record)
}

func TestRunRequiresConfig(t *testing.T) {
	src := source(t, [][]float64{{0.1}}, [][]float64{{0.4}})

	_, err := Run(context.Background(), Config{Encoder: &float32Encoder{}}, src)
	require.Error(t, err)

	_, err = Run(context.Background(), Config{AreaName: "north"}, src)
	require.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "north-paddock", Slug("  North Paddock  "))
	assert.Equal(t, "area", Slug("///"))
	assert.Equal(t, "plot-7", Slug("plot_7"))
}

func TestArtifactName(t *testing.T) {
	name := ArtifactName("River Bend", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "abcdef0123456789", ".tif")
	assert.Equal(t, "river-bend/20250102T030405Z_abcdef012345.tif", name)
}
