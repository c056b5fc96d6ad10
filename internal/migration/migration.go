package migration

import (
	"context"
	"fmt"

	"reviewguard/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// Dialect selects the SQL flavour of a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// DialectOf maps a sqlx driver name to a dialect.
func DialectOf(db *sqlx.DB) (Dialect, error) {
	switch db.DriverName() {
	case "sqlite3":
		return DialectSQLite, nil
	case "postgres", "pgx":
		return DialectPostgres, nil
	}
	return "", errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", db.DriverName()))
}

// MigrationRunner creates the run store schema
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all run store migrations in order. It is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	dialect, err := DialectOf(db)
	if err != nil {
		return err
	}

	if err := r.createRunsTable(ctx, db, dialect); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to create runs table"))
	}

	if err := r.addRunsColumns(ctx, db, dialect); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to add runs columns"))
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to create indexes"))
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to record schema version"))
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	var ddl string
	switch dialect {
	case DialectPostgres:
		ddl = `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			algorithm VARCHAR(64) NOT NULL,
			params JSONB NOT NULL,
			status VARCHAR(32) NOT NULL,
			terminal_state VARCHAR(32) NOT NULL DEFAULT '',
			iterations INTEGER NOT NULL DEFAULT 0,
			promoted INTEGER NOT NULL DEFAULT 0,
			training_size INTEGER NOT NULL DEFAULT 0,
			held_out_size INTEGER NOT NULL DEFAULT 0,
			evaluation_size INTEGER NOT NULL DEFAULT 0,
			accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			precision_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			recall DOUBLE PRECISION NOT NULL DEFAULT 0,
			f1 DOUBLE PRECISION NOT NULL DEFAULT 0,
			confusion_matrix JSONB NOT NULL,
			table_fingerprint VARCHAR(64) NOT NULL DEFAULT '',
			fingerprint VARCHAR(64) NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	default:
		ddl = `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			algorithm TEXT NOT NULL,
			params TEXT NOT NULL,
			status TEXT NOT NULL,
			terminal_state TEXT NOT NULL DEFAULT '',
			iterations INTEGER NOT NULL DEFAULT 0,
			promoted INTEGER NOT NULL DEFAULT 0,
			training_size INTEGER NOT NULL DEFAULT 0,
			held_out_size INTEGER NOT NULL DEFAULT 0,
			evaluation_size INTEGER NOT NULL DEFAULT 0,
			accuracy REAL NOT NULL DEFAULT 0,
			precision_score REAL NOT NULL DEFAULT 0,
			recall REAL NOT NULL DEFAULT 0,
			f1 REAL NOT NULL DEFAULT 0,
			confusion_matrix TEXT NOT NULL,
			table_fingerprint TEXT NOT NULL DEFAULT '',
			fingerprint TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// addRunsColumns brings stores created before iteration history was kept up
// to date.
func (r *MigrationRunner) addRunsColumns(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	if dialect == DialectPostgres {
		_, err := db.ExecContext(ctx, `ALTER TABLE runs ADD COLUMN IF NOT EXISTS history JSONB NOT NULL DEFAULT '[]'::jsonb`)
		return err
	}

	var columns []string
	if err := db.SelectContext(ctx, &columns, `SELECT name FROM pragma_table_info('runs')`); err != nil {
		return err
	}
	for _, name := range columns {
		if name == "history" {
			return nil
		}
	}
	_, err := db.ExecContext(ctx, `ALTER TABLE runs ADD COLUMN history TEXT NOT NULL DEFAULT '[]'`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_algorithm ON runs(algorithm)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(32) PRIMARY KEY
		)
	`); err != nil {
		return err
	}
	var exists int
	if err := db.GetContext(ctx, &exists, db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), r.version); err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), r.version)
	return err
}

// AppliedVersions lists recorded schema versions.
func AppliedVersions(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var versions []string
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		return nil, errors.DatabaseError("failed to read schema versions", err)
	}
	return versions, nil
}
