package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"Costbook/internal/domain"
	"Costbook/internal/ports"
)

// Ingestion outcome labels stored per tracked file.
const (
	StatusSuccess     = "SUCCESS"
	StatusError       = "ERROR"
	StatusWarningZero = "WARNING_ZERO"
)

// PostgresTracker records which source files were already ingested and with
// what content hash, making re-runs idempotent.
type PostgresTracker struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.SourceTracker = (*PostgresTracker)(nil)

// NewPostgresTracker wires a sql.DB implementation.
func NewPostgresTracker(db *sql.DB) *PostgresTracker {
	return &PostgresTracker{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Status classifies an incoming file against the tracking table. An unknown
// filename is new, a known filename with a different hash must be reloaded,
// and a known filename with the same hash that already succeeded is skipped.
func (t *PostgresTracker) Status(ctx context.Context, filename, hash string) (domain.SourceStatus, error) {
	query, args, err := t.sb.
		Select("file_hash", "status").
		From("ingested_files").
		Where(sq.Eq{"filename": filename}).
		ToSql()
	if err != nil {
		return domain.SourceNew, fmt.Errorf("build status query: %w", err)
	}

	var storedHash, storedStatus string
	err = t.db.QueryRowContext(ctx, query, args...).Scan(&storedHash, &storedStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SourceNew, nil
	}
	if err != nil {
		return domain.SourceNew, fmt.Errorf("query tracked file %s: %w", filename, err)
	}

	if storedHash == hash && storedStatus == StatusSuccess {
		return domain.SourceSkip, nil
	}
	if storedHash == hash {
		// Same content, previous run did not finish cleanly: retry as update.
		return domain.SourceUpdate, nil
	}
	return domain.SourceUpdate, nil
}

// Record upserts the tracking row for a processed file.
func (t *PostgresTracker) Record(ctx context.Context, filename, hash, status string, recipes int) error {
	query, args, err := t.sb.
		Insert("ingested_files").
		Columns("filename", "file_hash", "import_date", "status", "recipes_count").
		Values(filename, hash, time.Now().UTC(), status, recipes).
		Suffix(`ON CONFLICT (filename) DO UPDATE SET
			file_hash = EXCLUDED.file_hash,
			import_date = EXCLUDED.import_date,
			status = EXCLUDED.status,
			recipes_count = EXCLUDED.recipes_count`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build tracker upsert: %w", err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record file %s: %w", filename, err)
	}
	return nil
}
