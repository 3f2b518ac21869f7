package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS job_artifacts (
		key        TEXT PRIMARY KEY,
		job_id     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		content    BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS job_artifacts_job_id_idx ON job_artifacts (job_id)`,
}

// PostgresStore keeps artifacts in a PostgreSQL table keyed by the artifact key.
// Each write is a single upsert statement.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to the database and ensures the artifacts table exists.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create job_artifacts schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Backend implements Store.
func (s *PostgresStore) Backend() string {
	return "postgres"
}

// Write implements Store.
func (s *PostgresStore) Write(ctx context.Context, jobID string, kind Kind, content []byte) error {
	key, err := Key(jobID, kind)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO job_artifacts (key, job_id, kind, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`,
		key, jobID, string(kind), content,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", key, err)
	}
	return nil
}

// Read implements Store.
func (s *PostgresStore) Read(ctx context.Context, jobID string, kind Kind) ([]byte, error) {
	key, err := Key(jobID, kind)
	if err != nil {
		return nil, err
	}
	var content []byte
	err = s.pool.QueryRow(ctx,
		`SELECT content FROM job_artifacts WHERE key = $1`,
		key,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", key, err)
	}
	return content, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id FROM job_artifacts WHERE kind = $1 ORDER BY job_id`,
		string(KindStatus),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan job ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
