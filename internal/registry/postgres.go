package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// DefaultTable is the registry table name when none is configured.
const DefaultTable = "file_registry"

// Connect opens a pgx connection pool for the registry database.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRegistryUnavailable, err)
	}
	return pool, nil
}

// PostgresStore keeps the registry in a Postgres table. History is
// append-only: every attempt inserts a new row and the decision query
// reads the latest SUCCESS entry, so concurrent writers cannot lose each
// other's records and manual DELETE remains the way to force
// reprocessing.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, table string, logger *slog.Logger) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, table: table, logger: logger}
}

// EnsureTable bootstraps the registry table if it does not exist yet.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		file_name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('SUCCESS', 'FAILED')),
		error_message TEXT,
		row_count BIGINT
	);
	CREATE INDEX IF NOT EXISTS %s_file_name_idx ON %s (file_name, processed_at DESC);`,
		pgx.Identifier{s.table}.Sanitize(),
		s.table,
		pgx.Identifier{s.table}.Sanitize())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: creating table %s: %v", models.ErrRegistryUnavailable, s.table, err)
	}
	return nil
}

// NeedsProcessing implements Store.
func (s *PostgresStore) NeedsProcessing(ctx context.Context, fileName, checksum string) (bool, error) {
	query := fmt.Sprintf(`
	SELECT checksum FROM %s
	WHERE file_name = $1 AND status = 'SUCCESS'
	ORDER BY processed_at DESC
	LIMIT 1`, pgx.Identifier{s.table}.Sanitize())

	var stored string
	err := s.pool.QueryRow(ctx, query, fileName).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Info("file not in registry, will process", slog.String("file", fileName))
		return decide(nil, checksum), nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: querying checksum for %s: %v", models.ErrRegistryUnavailable, fileName, err)
	}

	needs := decide(&stored, checksum)
	if needs {
		s.logger.Info("file checksum changed, will process", slog.String("file", fileName))
	} else {
		s.logger.Info("file unchanged, skipping", slog.String("file", fileName))
	}
	return needs, nil
}

// Record implements Store.
func (s *PostgresStore) Record(ctx context.Context, entry models.RegistryEntry) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (file_name, checksum, processed_at, status, error_message, row_count)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		pgx.Identifier{s.table}.Sanitize())

	_, err := s.pool.Exec(ctx, query,
		entry.FileName,
		entry.Checksum,
		entry.ProcessedAt,
		entry.Status,
		entry.ErrorMessage,
		entry.RowCount,
	)
	if err != nil {
		return fmt.Errorf("%w: recording %s for %s: %v", models.ErrRegistryUnavailable, entry.Status, entry.FileName, err)
	}

	s.logger.Debug("recorded attempt",
		slog.String("file", entry.FileName),
		slog.String("status", entry.Status),
		slog.Int64("rows", entry.RowCount))
	return nil
}

var _ Store = (*PostgresStore)(nil)
