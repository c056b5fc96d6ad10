package ports

import (
	"context"

	"reviewguard/domain/core"
	"reviewguard/domain/run"
)

// RunRepository defines storage for training run summaries
type RunRepository interface {
	Save(ctx context.Context, record *run.Record) error
	Get(ctx context.Context, id core.RunID) (*run.Record, error)
	List(ctx context.Context, limit, offset int) ([]*run.Record, error)
	Close() error
}
