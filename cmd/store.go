package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/regen-insights/internal/properties"
	"github.com/forest-guardian/regen-insights/internal/storage"
)

type storageHandle struct {
	*storage.Store
	artifacts *storage.FileArtifactStore
}

func (h *storageHandle) Close() error {
	return h.Records.Close()
}

func openRecordStore(ctx context.Context, cfg *properties.Config) (storage.RecordStore, error) {
	switch cfg.DBDriver {
	case properties.DriverPostgres:
		return storage.NewPostgresRecordStore(ctx, storage.PostgresConfig{DSN: cfg.DBDSN})
	case properties.DriverSQLite:
		if cfg.DBDSN != ":memory:" && !strings.HasPrefix(cfg.DBDSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), os.ModePerm); err != nil {
				return nil, err
			}
		}
		return storage.NewSQLiteRecordStore(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func openStore(ctx context.Context, cfg *properties.Config) (*storageHandle, error) {
	artifacts, err := storage.NewFileArtifactStore(cfg.ArtifactRoot())
	if err != nil {
		return nil, err
	}
	records, err := openRecordStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return &storageHandle{Store: storage.NewStore(artifacts, records), artifacts: artifacts}, nil
}
