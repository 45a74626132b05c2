package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/regen-insights/internal/cache"
	"github.com/forest-guardian/regen-insights/internal/gtiff"
	"github.com/forest-guardian/regen-insights/internal/notification"
	"github.com/forest-guardian/regen-insights/internal/output"
	"github.com/forest-guardian/regen-insights/internal/pipeline"
	"github.com/forest-guardian/regen-insights/internal/raster"
	"github.com/forest-guardian/regen-insights/internal/sentinel"
	"github.com/forest-guardian/regen-insights/internal/ui"
)

type runOptions struct {
	area    string
	project string

	input   string
	redBand int
	nirBand int
	red     string
	nir     string

	download bool
	date     string

	dryRun       bool
	preview      bool
	previewScale int
	notify       bool
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the regeneration record of one area",
		Long: `Compute NDVI for one area from a red/NIR band pair, score it and store the
derived raster with its record.

Bands come from one of:
  --input FILE            multi-band GeoTIFF (--red-band/--nir-band pick the bands)
  --red FILE --nir FILE   one single-band GeoTIFF per band
  --download --date DAY   Sentinel-2 L2A scene fetched for the area geometry in
                          $ROOT_PATH/data/geojsons/<project>.geojson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.area, "area", "", "area name (required)")
	f.StringVar(&o.project, "project", "", "project the area belongs to")
	f.StringVar(&o.input, "input", "", "multi-band GeoTIFF")
	f.IntVar(&o.redBand, "red-band", gtiff.SentinelBands[raster.BandRed], "1-based red band index in --input")
	f.IntVar(&o.nirBand, "nir-band", gtiff.SentinelBands[raster.BandNIR], "1-based NIR band index in --input")
	f.StringVar(&o.red, "red", "", "single-band red GeoTIFF")
	f.StringVar(&o.nir, "nir", "", "single-band NIR GeoTIFF")
	f.BoolVar(&o.download, "download", false, "download the scene from Copernicus")
	f.StringVar(&o.date, "date", "today", "scene date for --download (YYYY-MM-DD)")
	f.BoolVar(&o.dryRun, "dry-run", false, "compute and print without storing")
	f.BoolVar(&o.preview, "preview", true, "store a PNG preview and GeoJSON footprint next to the raster")
	f.IntVar(&o.previewScale, "preview-scale", 4, "preview pixels per raster pixel")
	f.BoolVar(&o.notify, "notify", false, "post the result to the Discord webhooks")
	cmd.MarkFlagRequired("area")
	cmd.MarkFlagsMutuallyExclusive("input", "red", "download")
	cmd.MarkFlagsMutuallyExclusive("input", "nir", "download")
	cmd.MarkFlagsRequiredTogether("red", "nir")
	return cmd
}

func (a *app) run(ctx context.Context, o *runOptions) error {
	var discord *notification.Discord
	if o.notify {
		discord = notification.NewDiscord(a.cfg.DiscordErrorNotificationURL, a.cfg.DiscordSuccessNotificationURL)
	}

	record, err := a.runArea(ctx, o)
	if err != nil {
		if discord != nil {
			if nerr := discord.SendErrorNotification(ctx, fmt.Sprintf("%s: %v", o.area, err)); nerr != nil {
				a.logger.Warn("failed to send error notification", "error", nerr)
			}
		}
		return err
	}

	ui.PrintRecord(os.Stdout, record)
	if discord != nil {
		if err := discord.SendRecord(ctx, record); err != nil {
			a.logger.Warn("failed to send notification", "error", err)
		}
	}
	return nil
}

func (a *app) runArea(ctx context.Context, o *runOptions) (pipeline.Record, error) {
	gtiff.Register()

	src, err := a.source(ctx, o)
	if err != nil {
		return pipeline.Record{}, err
	}

	var projectID *string
	if o.project != "" {
		projectID = &o.project
	}
	bar, onStage := ui.StageProgress(o.area)
	result, err := pipeline.Run(ctx, pipeline.Config{
		AreaName:  o.area,
		ProjectID: projectID,
		Encoder:   gtiff.Encoder{},
		OnStage:   onStage,
	}, src)
	bar.Finish()
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			a.logger.Error("pipeline aborted", "area", o.area, "stage", stageErr.Stage, "error", stageErr.Err)
		}
		return pipeline.Record{}, err
	}
	a.logger.Debug("pipeline finished", "area", o.area, "artifact", result.Artifact.Name, "sha256", result.Artifact.SHA256)

	if o.dryRun {
		return result.Record, nil
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return pipeline.Record{}, err
	}
	defer store.Close()

	id, err := store.Persist(ctx, result.Artifact, result.Record)
	if err != nil {
		return pipeline.Record{}, err
	}
	record := result.Record
	record.ID = id
	a.logger.Info("record stored", "id", id, "artifact", result.Artifact.Name)

	if o.preview {
		if err := a.storePreview(ctx, store, result, o.previewScale); err != nil {
			a.logger.Warn("failed to store preview", "area", o.area, "error", err)
		}
	}
	return record, nil
}

// storePreview writes the PNG and then the GeoJSON footprint beside the
// raster. The API treats a present footprint as a complete overlay.
func (a *app) storePreview(ctx context.Context, store *storageHandle, result *pipeline.Result, scale int) error {
	png, err := output.RenderPreview(result.Index, scale)
	if err != nil {
		return err
	}
	if err := store.artifacts.Put(ctx, output.PreviewName(result.Artifact.Name), png); err != nil {
		return err
	}

	footprint, err := output.FootprintJSON(result.Index, map[string]interface{}{
		"area_name":   result.Record.AreaName,
		"regen_score": result.Record.RegenScore,
		"mean_ndvi":   result.Record.MeanNDVI,
		"computed_at": result.Record.ComputedAt.Format(time.RFC3339),
		"raster":      result.Artifact.Name,
	})
	if err != nil {
		return err
	}
	return store.artifacts.Put(ctx, output.FootprintName(result.Artifact.Name), footprint)
}

func (a *app) source(ctx context.Context, o *runOptions) (raster.Source, error) {
	switch {
	case o.input != "":
		return gtiff.NewSource(o.input, map[string]int{
			raster.BandRed: o.redBand,
			raster.BandNIR: o.nirBand,
		}), nil
	case o.red != "":
		return gtiff.FileSource{raster.BandRed: o.red, raster.BandNIR: o.nir}, nil
	case o.download:
		path, err := a.download(ctx, o)
		if err != nil {
			return nil, err
		}
		return gtiff.NewSource(path, gtiff.SentinelBands), nil
	default:
		return nil, errors.New("one of --input, --red/--nir or --download is required")
	}
}

func (a *app) download(ctx context.Context, o *runOptions) (string, error) {
	if o.project == "" {
		return "", errors.New("--download needs --project to find the area geometry")
	}
	date, err := ui.ParseDate(o.date)
	if err != nil {
		return "", err
	}
	geometry, err := sentinel.GetAreaGeometry(sentinel.ProjectGeoJSONPath(a.cfg.RootPath, o.project), o.area)
	if err != nil {
		return "", err
	}

	creds := make([]sentinel.Credential, len(a.cfg.CopernicusClientIDs))
	for i := range creds {
		creds[i] = sentinel.Credential{
			ClientID:     a.cfg.CopernicusClientIDs[i],
			ClientSecret: a.cfg.CopernicusClientSecrets[i],
		}
	}
	client := sentinel.NewClient(creds, a.cfg.CopernicusTokenURL,
		cache.NewFileCache(a.cfg.CacheDir()), a.logger)

	a.logger.Info("downloading scene", "project", o.project, "area", o.area, "date", date.Format("2006-01-02"))
	return client.Download(ctx, pipeline.Slug(o.area), geometry, date, a.cfg.ImageDir())
}
