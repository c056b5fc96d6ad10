package ports

import (
	"context"

	"reviewguard/domain/run"
)

// ReportWriter renders a finished run into a durable artifact and returns
// where it was written.
type ReportWriter interface {
	WriteReport(ctx context.Context, report *run.Report) (string, error)
}
