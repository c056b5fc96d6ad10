package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"reviewguard/domain/run"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/ports"

	"github.com/xuri/excelize/v2"
)

const (
	metricsSheet     = "Metrics"
	confusionSheet   = "Confusion"
	predictionsSheet = "Predictions"
	historySheet     = "Iterations"
)

// ReportWriter writes one xlsx workbook per run
type ReportWriter struct {
	dir    string
	logger *internal.Logger
}

// NewReportWriter creates a writer that stores workbooks under dir
func NewReportWriter(dir string, logger *internal.Logger) ports.ReportWriter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReportWriter{dir: dir, logger: logger.Named("ExcelReport")}
}

// WriteReport renders the run into <dir>/run-<id>.xlsx and returns the path
func (w *ReportWriter) WriteReport(ctx context.Context, report *run.Report) (string, error) {
	if report == nil || report.Record == nil {
		return "", errors.InvalidInput("report has no run record")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.IOError("failed to create report directory", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", metricsSheet); err != nil {
		return "", errors.IOError("failed to name metrics sheet", err)
	}
	steps := []func(*excelize.File, *run.Report) error{
		writeMetrics,
		writeConfusion,
		writePredictions,
		writeHistory,
	}
	for _, step := range steps {
		if err := step(f, report); err != nil {
			return "", errors.IOError("failed to build report workbook", err)
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("run-%s.xlsx", report.Record.ID))
	if err := f.SaveAs(path); err != nil {
		return "", errors.IOError("failed to save report workbook", err)
	}
	w.logger.Info("wrote %s", path)
	return path, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
}

func writeMetrics(f *excelize.File, report *run.Report) error {
	rec := report.Record
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Run ID", rec.ID.String()},
		{"Algorithm", rec.Algorithm},
		{"Status", string(rec.Status)},
		{"Terminal state", rec.TerminalState},
		{"Accuracy", rec.Accuracy},
		{"Precision", rec.Precision},
		{"Recall", rec.Recall},
		{"F1", rec.F1},
		{"Iterations", rec.Iterations},
		{"Promoted", rec.Promoted},
		{"Training size", rec.TrainingSize},
		{"Held-out size", rec.HeldOutSize},
		{"Evaluation size", rec.EvaluationSize},
		{"Threshold", rec.Params.Threshold},
		{"Test fraction", rec.Params.TestFraction},
		{"Seed", rec.Params.Seed},
		{"Positive label", rec.Params.PositiveLabel},
		{"Fingerprint", rec.Fingerprint.Short()},
	}
	if err := setRows(f, metricsSheet, rows); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(metricsSheet, "A1", "B1", style); err != nil {
		return err
	}
	return f.SetColWidth(metricsSheet, "A", "B", 22)
}

// writeConfusion lays the matrix out with true labels down the side and
// predictions across the top, shaded by a two-colour scale.
func writeConfusion(f *excelize.File, report *run.Report) error {
	if _, err := f.NewSheet(confusionSheet); err != nil {
		return err
	}
	neg, pos := report.ClassLabels[0], report.ClassLabels[1]
	cm := report.Record.Confusion
	rows := [][]interface{}{
		{"true \\ predicted", neg, pos},
		{neg, cm[0][0], cm[0][1]},
		{pos, cm[1][0], cm[1][1]},
	}
	if err := setRows(f, confusionSheet, rows); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(confusionSheet, "A1", "C1", style); err != nil {
		return err
	}
	if err := f.SetCellStyle(confusionSheet, "A2", "A3", style); err != nil {
		return err
	}
	return f.SetConditionalFormat(confusionSheet, "B2:C3", []excelize.ConditionalFormatOptions{{
		Type:     "2_color_scale",
		Criteria: "=",
		MinType:  "min",
		MaxType:  "max",
		MinColor: "#F7FBFF",
		MaxColor: "#08519C",
	}})
}

func writePredictions(f *excelize.File, report *run.Report) error {
	if _, err := f.NewSheet(predictionsSheet); err != nil {
		return err
	}
	if len(report.TrueLabels) != len(report.Predictions) {
		return fmt.Errorf("%d true labels but %d predictions", len(report.TrueLabels), len(report.Predictions))
	}
	rows := make([][]interface{}, 0, len(report.Predictions)+1)
	rows = append(rows, []interface{}{"row", "true", "predicted", "correct"})
	for i, p := range report.Predictions {
		rows = append(rows, []interface{}{i, report.TrueLabels[i], p, report.TrueLabels[i] == p})
	}
	return setRows(f, predictionsSheet, rows)
}

func writeHistory(f *excelize.File, report *run.Report) error {
	if _, err := f.NewSheet(historySheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"iteration", "training", "held_out", "promoted", "mean_confidence"}}
	for _, it := range report.Record.History {
		rows = append(rows, []interface{}{it.Iteration, it.TrainingSize, it.HeldOutSize, it.Promoted, it.MeanConfidence})
	}
	return setRows(f, historySheet, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
