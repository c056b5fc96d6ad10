package sqlite

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
)

const runColumns = `id, algorithm, params, status, terminal_state, iterations, promoted,
	training_size, held_out_size, evaluation_size, accuracy, precision_score, recall, f1,
	confusion_matrix, history, table_fingerprint, fingerprint, error, duration_ms, created_at`

// RunRepository stores run summaries in SQLite
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a SQLite run repository. The schema must have been
// created with migration.NewRunner.
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepository{db: db}
}

// Save inserts a run, or replaces the stored run with the same ID
func (r *RunRepository) Save(ctx context.Context, record *run.Record) error {
	if record.ID == "" {
		record.ID = core.NewRunID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (:id, :algorithm, :params, :status, :terminal_state, :iterations, :promoted,
			:training_size, :held_out_size, :evaluation_size, :accuracy, :precision_score, :recall, :f1,
			:confusion_matrix, :history, :table_fingerprint, :fingerprint, :error, :duration_ms, :created_at)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			terminal_state = excluded.terminal_state,
			iterations = excluded.iterations,
			promoted = excluded.promoted,
			training_size = excluded.training_size,
			held_out_size = excluded.held_out_size,
			evaluation_size = excluded.evaluation_size,
			accuracy = excluded.accuracy,
			precision_score = excluded.precision_score,
			recall = excluded.recall,
			f1 = excluded.f1,
			confusion_matrix = excluded.confusion_matrix,
			history = excluded.history,
			error = excluded.error,
			duration_ms = excluded.duration_ms
	`, record)
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to save run %s", record.ID), err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id core.RunID) (*run.Record, error) {
	var record run.Record
	err := r.db.GetContext(ctx, &record, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to get run %s", id), err)
	}
	return &record, nil
}

// List returns runs newest first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*run.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var records []*run.Record
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+runColumns+` FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return records, nil
}

// Close closes the underlying database
func (r *RunRepository) Close() error {
	return r.db.Close()
}
