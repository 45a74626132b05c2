package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forest-guardian/regen-insights/internal/pipeline"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS regeneration_records (
	id           TEXT PRIMARY KEY,
	project_id   TEXT,
	area_name    TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	min_ndvi     REAL NOT NULL,
	max_ndvi     REAL NOT NULL,
	mean_ndvi    REAL NOT NULL,
	regen_score  INTEGER NOT NULL CHECK (regen_score BETWEEN 0 AND 100),
	insight      TEXT NOT NULL,
	computed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_regeneration_records_area
	ON regeneration_records (area_name, computed_at DESC);
`

// SQLiteRecordStore keeps records in a SQLite database. computed_at is stored
// as Unix nanoseconds so ordering is numeric.
type SQLiteRecordStore struct {
	db *sql.DB
}

// NewSQLiteRecordStore opens path (":memory:" works) and creates the table.
func NewSQLiteRecordStore(path string) (*SQLiteRecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteRecordStore{db: db}, nil
}

func (s *SQLiteRecordStore) Insert(ctx context.Context, r pipeline.Record) error {
	if r.ID == "" {
		return errors.New("record id is required")
	}
	var projectID sql.NullString
	if r.ProjectID != nil {
		projectID = sql.NullString{String: *r.ProjectID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO regeneration_records
			(id, project_id, area_name, storage_path, min_ndvi, max_ndvi, mean_ndvi, regen_score, insight, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, projectID, r.AreaName, r.StoragePath, r.MinNDVI, r.MaxNDVI, r.MeanNDVI,
		r.RegenScore, r.Insight, r.ComputedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", r.ID, err)
	}
	return nil
}

const sqliteColumns = `id, project_id, area_name, storage_path, min_ndvi, max_ndvi, mean_ndvi, regen_score, insight, computed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scanner) (pipeline.Record, error) {
	var (
		r          pipeline.Record
		projectID  sql.NullString
		computedAt int64
	)
	err := row.Scan(&r.ID, &projectID, &r.AreaName, &r.StoragePath, &r.MinNDVI, &r.MaxNDVI,
		&r.MeanNDVI, &r.RegenScore, &r.Insight, &computedAt)
	if err != nil {
		return pipeline.Record{}, err
	}
	if projectID.Valid {
		r.ProjectID = &projectID.String
	}
	r.ComputedAt = time.Unix(0, computedAt).UTC()
	return r, nil
}

func (s *SQLiteRecordStore) Get(ctx context.Context, id string) (pipeline.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM regeneration_records WHERE id = ?`, id)
	r, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Record{}, fmt.Errorf("%w: record %s", ErrNotFound, id)
	}
	if err != nil {
		return pipeline.Record{}, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteRecordStore) List(ctx context.Context, f ListFilter) ([]pipeline.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.AreaName != "" {
		where = append(where, "area_name = ?")
		args = append(args, f.AreaName)
	}
	if !f.Since.IsZero() {
		where = append(where, "computed_at >= ?")
		args = append(args, f.Since.UTC().UnixNano())
	}

	query := `SELECT ` + sqliteColumns + ` FROM regeneration_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY computed_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []pipeline.Record{}
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}
