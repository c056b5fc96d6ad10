package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"reviewguard/domain/core"
	"reviewguard/domain/run"
	"reviewguard/internal/errors"
	"reviewguard/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const runColumns = `id, algorithm, params, status, terminal_state, iterations, promoted,
	training_size, held_out_size, evaluation_size, accuracy, precision_score, recall, f1,
	confusion_matrix, history, table_fingerprint, fingerprint, error, duration_ms, created_at`

// pqInvalidTextRepresentation is raised when an id is not a valid UUID.
const pqInvalidTextRepresentation = "22P02"

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// Connect opens a PostgreSQL connection from a postgres:// URL
func Connect(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Save inserts a run, or updates the outcome of the stored run with the same ID
func (r *RunRepositoryImpl) Save(ctx context.Context, record *run.Record) error {
	if record.ID == "" {
		record.ID = core.NewRunID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			terminal_state = EXCLUDED.terminal_state,
			iterations = EXCLUDED.iterations,
			promoted = EXCLUDED.promoted,
			training_size = EXCLUDED.training_size,
			held_out_size = EXCLUDED.held_out_size,
			evaluation_size = EXCLUDED.evaluation_size,
			accuracy = EXCLUDED.accuracy,
			precision_score = EXCLUDED.precision_score,
			recall = EXCLUDED.recall,
			f1 = EXCLUDED.f1,
			confusion_matrix = EXCLUDED.confusion_matrix,
			history = EXCLUDED.history,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms
	`, record.ID, record.Algorithm, record.Params, record.Status, record.TerminalState,
		record.Iterations, record.Promoted, record.TrainingSize, record.HeldOutSize, record.EvaluationSize,
		record.Accuracy, record.Precision, record.Recall, record.F1,
		record.Confusion, record.History, record.TableFingerprint, record.Fingerprint,
		record.Error, record.DurationMs, record.CreatedAt)
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to save run %s", record.ID), err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*run.Record, error) {
	var record run.Record
	err := r.db.GetContext(ctx, &record, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.Is(err, sql.ErrNoRows) ||
			(stderrors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation) {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		return nil, errors.DatabaseError(fmt.Sprintf("failed to get run %s", id), err)
	}
	return &record, nil
}

// List returns runs newest first
func (r *RunRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*run.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var records []*run.Record
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return records, nil
}

// Close closes the underlying database
func (r *RunRepositoryImpl) Close() error {
	return r.db.Close()
}
