package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"reviewguard/domain/run"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/ports"
)

// HTMLWriter writes one HTML summary per run
type HTMLWriter struct {
	dir    string
	logger *internal.Logger
}

// NewHTMLWriter creates a writer that stores pages under dir
func NewHTMLWriter(dir string, logger *internal.Logger) ports.ReportWriter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &HTMLWriter{dir: dir, logger: logger.Named("HTMLReport")}
}

// WriteReport renders the run into <dir>/run-<id>.html and returns the path
func (w *HTMLWriter) WriteReport(ctx context.Context, report *run.Report) (string, error) {
	if report == nil || report.Record == nil {
		return "", errors.InvalidInput("report has no run record")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.IOError("failed to create report directory", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("run-%s.html", report.Record.ID))
	if err := os.WriteFile(path, RenderHTML(report), 0o644); err != nil {
		return "", errors.IOError("failed to write HTML report", err)
	}
	w.logger.Info("wrote %s", path)
	return path, nil
}
