// Package pipeline turns a red/NIR band pair into a regeneration Record and an
// encoded NDVI raster.
//
// A run is a single linear pass: Loaded → Indexed → Aggregated → Scored →
// Encoded → Emitted. Any failure aborts the run and no partial Result is
// returned. Cancellation is observed only between stages.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/forest-guardian/regen-insights/internal/ndvi"
	"github.com/forest-guardian/regen-insights/internal/raster"
)

// Encoder serialises an index grid into a single-band raster.
type Encoder interface {
	Encode(grid *raster.Grid) ([]byte, error)
	ContentType() string
	Extension() string
}

// Config describes one invocation.
type Config struct {
	AreaName  string
	ProjectID *string

	// RedBand and NIRBand are the band names requested from the source.
	// They default to raster.BandRed and raster.BandNIR.
	RedBand string
	NIRBand string

	Encoder Encoder

	// Now stamps ComputedAt. Defaults to time.Now.
	Now func() time.Time

	// OnStage, if set, is called after each stage completes.
	OnStage func(Stage)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.AreaName) == "" {
		return errors.New("area name is required")
	}
	if c.Encoder == nil {
		return errors.New("encoder is required")
	}
	return nil
}

// Run executes the whole pipeline against src.
func Run(ctx context.Context, cfg Config, src raster.Source) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	redName, nirName := cfg.RedBand, cfg.NIRBand
	if redName == "" {
		redName = raster.BandRed
	}
	if nirName == "" {
		nirName = raster.BandNIR
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := run{ctx: ctx, onStage: cfg.OnStage}

	var bands raster.Bands
	if err := r.step(StageLoaded, func() (err error) {
		bands, err = raster.LoadBands(ctx, src, redName, nirName)
		return err
	}); err != nil {
		return nil, err
	}

	var index *raster.Grid
	if err := r.step(StageIndexed, func() (err error) {
		index, err = ndvi.Compute(bands.NIR, bands.Red)
		return err
	}); err != nil {
		return nil, err
	}

	var stats ndvi.Stats
	if err := r.step(StageAggregated, func() (err error) {
		stats, err = ndvi.Aggregate(index)
		return err
	}); err != nil {
		return nil, err
	}

	var assessment ndvi.Assessment
	if err := r.step(StageScored, func() error {
		assessment = ndvi.Evaluate(stats)
		return nil
	}); err != nil {
		return nil, err
	}

	var artifact Artifact
	computedAt := now().UTC()
	if err := r.step(StageEncoded, func() (err error) {
		artifact, err = encodeArtifact(cfg.Encoder, index, bands.Metadata(), cfg.AreaName, computedAt)
		return err
	}); err != nil {
		return nil, err
	}

	var result *Result
	if err := r.step(StageEmitted, func() error {
		result = &Result{
			Record:   NewRecord(cfg.AreaName, cfg.ProjectID, artifact.Name, stats, assessment, computedAt),
			Artifact: artifact,
			Index:    index,
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}

type run struct {
	ctx     context.Context
	onStage func(Stage)
}

func (r run) step(stage Stage, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	if err := fn(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	if r.onStage != nil {
		r.onStage(stage)
	}
	return nil
}

// NewRecord assembles the record for a completed run.
func NewRecord(area string, projectID *string, storagePath string, stats ndvi.Stats, a ndvi.Assessment, computedAt time.Time) Record {
	return Record{
		ProjectID:   projectID,
		AreaName:    area,
		StoragePath: storagePath,
		MinNDVI:     stats.Min,
		MaxNDVI:     stats.Max,
		MeanNDVI:    stats.Mean,
		RegenScore:  a.Score,
		Insight:     a.Insight,
		ComputedAt:  computedAt,
	}
}

func encodeArtifact(enc Encoder, index *raster.Grid, source raster.Metadata, area string, computedAt time.Time) (Artifact, error) {
	if !index.Metadata().SameSpace(source) {
		return Artifact{}, fmt.Errorf("%w: index metadata does not match source bands", ErrEncoding)
	}

	data, err := enc.Encode(index)
	if err != nil {
		if errors.Is(err, ErrEncoding) {
			return Artifact{}, err
		}
		return Artifact{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return Artifact{
		Name:        ArtifactName(area, computedAt, digest, enc.Extension()),
		ContentType: enc.ContentType(),
		Data:        data,
		SHA256:      digest,
	}, nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and collapses anything outside [a-z0-9] into '-'.
func Slug(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "area"
	}
	return s
}

// ArtifactName builds "<area-slug>/<yyyymmddThhmmssZ>_<digest[:12]><ext>".
func ArtifactName(area string, computedAt time.Time, digest, ext string) string {
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return fmt.Sprintf("%s/%s_%s%s", Slug(area), computedAt.UTC().Format("20060102T150405Z"), digest, ext)
}
