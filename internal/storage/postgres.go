package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forest-guardian/regen-insights/internal/pipeline"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS regeneration_records (
	id           UUID PRIMARY KEY,
	project_id   TEXT,
	area_name    TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	min_ndvi     DOUBLE PRECISION NOT NULL,
	max_ndvi     DOUBLE PRECISION NOT NULL,
	mean_ndvi    DOUBLE PRECISION NOT NULL,
	regen_score  INTEGER NOT NULL CHECK (regen_score BETWEEN 0 AND 100),
	insight      TEXT NOT NULL,
	computed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_regeneration_records_area
	ON regeneration_records (area_name, computed_at DESC);
`

const postgresColumns = `id::text, project_id, area_name, storage_path, min_ndvi, max_ndvi, mean_ndvi, regen_score, insight, computed_at`

type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// PostgresRecordStore keeps records in PostgreSQL through a pgx pool.
type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordStore(ctx context.Context, cfg PostgresConfig) (*PostgresRecordStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresRecordStore{pool: pool}, nil
}

func (s *PostgresRecordStore) Insert(ctx context.Context, r pipeline.Record) error {
	if r.ID == "" {
		return errors.New("record id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO regeneration_records
			(id, project_id, area_name, storage_path, min_ndvi, max_ndvi, mean_ndvi, regen_score, insight, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.ProjectID, r.AreaName, r.StoragePath, r.MinNDVI, r.MaxNDVI, r.MeanNDVI,
		r.RegenScore, r.Insight, r.ComputedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", r.ID, err)
	}
	return nil
}

func scanPostgresRecord(row pgx.Row) (pipeline.Record, error) {
	var r pipeline.Record
	err := row.Scan(&r.ID, &r.ProjectID, &r.AreaName, &r.StoragePath, &r.MinNDVI, &r.MaxNDVI,
		&r.MeanNDVI, &r.RegenScore, &r.Insight, &r.ComputedAt)
	if err != nil {
		return pipeline.Record{}, err
	}
	r.ComputedAt = r.ComputedAt.UTC()
	return r, nil
}

func (s *PostgresRecordStore) Get(ctx context.Context, id string) (pipeline.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresColumns+` FROM regeneration_records WHERE id::text = $1`, id)
	r, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Record{}, fmt.Errorf("%w: record %s", ErrNotFound, id)
	}
	if err != nil {
		return pipeline.Record{}, fmt.Errorf("getting record %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresRecordStore) List(ctx context.Context, f ListFilter) ([]pipeline.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.AreaName != "" {
		args = append(args, f.AreaName)
		where = append(where, fmt.Sprintf("area_name = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		where = append(where, fmt.Sprintf("computed_at >= $%d", len(args)))
	}

	query := `SELECT ` + postgresColumns + ` FROM regeneration_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY computed_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	records := []pipeline.Record{}
	for rows.Next() {
		r, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func (s *PostgresRecordStore) Close() error {
	s.pool.Close()
	return nil
}
