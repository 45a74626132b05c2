package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/regen-insights/internal/api"
	"github.com/forest-guardian/regen-insights/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve records and signed artifact links over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			return a.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $REGEN_HTTP_ADDR)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var signer *storage.URLSigner
	if a.cfg.SigningKey != "" {
		signer, err = storage.NewURLSigner([]byte(a.cfg.SigningKey), a.cfg.URLTTL, a.cfg.PublicURL)
		if err != nil {
			return err
		}
	} else {
		a.logger.Warn("REGEN_SIGNING_KEY not set, artifact links are disabled")
	}

	handler := api.NewHandler(store.Records, store.artifacts, signer, a.logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, a.cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
