// Package storage persists regeneration results: artifact bytes go to an
// ArtifactStore, records to a RecordStore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forest-guardian/regen-insights/internal/pipeline"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPath = errors.New("invalid artifact path")
)

// Persister stores one pipeline result and returns the record id. Failures
// are terminal; callers decide whether to re-run.
type Persister interface {
	Persist(ctx context.Context, artifact pipeline.Artifact, record pipeline.Record) (string, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// ListFilter narrows RecordStore.List. Zero values mean no filter.
type ListFilter struct {
	AreaName string
	Since    time.Time
	Limit    int
}

type RecordStore interface {
	Insert(ctx context.Context, record pipeline.Record) error
	Get(ctx context.Context, id string) (pipeline.Record, error)
	// List returns records newest first.
	List(ctx context.Context, filter ListFilter) ([]pipeline.Record, error)
	Close() error
}

// Store writes the artifact first and then the record. A failed record
// insert removes the artifact again so nothing is left half-persisted.
type Store struct {
	Artifacts ArtifactStore
	Records   RecordStore
}

func NewStore(artifacts ArtifactStore, records RecordStore) *Store {
	return &Store{Artifacts: artifacts, Records: records}
}

func (s *Store) Persist(ctx context.Context, artifact pipeline.Artifact, record pipeline.Record) (string, error) {
	if artifact.Name == "" {
		return "", fmt.Errorf("%w: empty artifact name", ErrInvalidPath)
	}
	if record.StoragePath == "" {
		record.StoragePath = artifact.Name
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if err := s.Artifacts.Put(ctx, artifact.Name, artifact.Data); err != nil {
		return "", fmt.Errorf("failed to store artifact %s: %w", artifact.Name, err)
	}
	if err := s.Records.Insert(ctx, record); err != nil {
		if delErr := s.Artifacts.Delete(ctx, artifact.Name); delErr != nil {
			return "", fmt.Errorf("failed to insert record: %w (artifact cleanup: %v)", err, delErr)
		}
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	return record.ID, nil
}
