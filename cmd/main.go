package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/regen-insights/internal/properties"
	"github.com/forest-guardian/regen-insights/internal/ui"
)

type app struct {
	cfg    *properties.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		verbose  bool
		noBanner bool
	)

	root := &cobra.Command{
		Use:           "regen",
		Short:         "NDVI regeneration insights for land parcels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.logger)

			cfg, err := properties.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			if !noBanner && cmd.Name() != "export" {
				ui.PrintBanner()
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "skip the banner")

	root.AddCommand(
		newRunCmd(a),
		newRecordsCmd(a),
		newServeCmd(a),
		newAreasCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func (a *app) openStore(ctx context.Context) (*storageHandle, error) {
	return openStore(ctx, a.cfg)
}
