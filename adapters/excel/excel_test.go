package excel

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/domain/run"
	"reviewguard/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func quiet() *internal.Logger {
	return internal.NewLoggerTo(io.Discard, internal.LogLevelError)
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "features"))
	require.NoError(t, setRows(f, "features", rows))
	path := filepath.Join(t.TempDir(), "features.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

var sheetRows = [][]interface{}{
	{"reviewID", "rating", "mnr", "flagged"},
	{"V1", 5, 1.0, "Y"},
	{"V2", 3, 0.5, "N"},
	{"V3", "", 0.5, "N"},
	{"V4", 1, "n/a", "Y"},
	{"V5", 2, 0.25, "N"},
}

func TestTableSource_InfersNumericColumns(t *testing.T) {
	path := writeWorkbook(t, sheetRows)
	src := NewTableSource(DefaultExcelConfig(path), quiet())

	table, err := src.LoadTable(context.Background(), dataset.Schema{})
	require.NoError(t, err)

	// reviewID is text; mnr holds "n/a" so it is not numeric either
	assert.Equal(t, []string{"rating"}, table.Schema.FeatureColumns)
	assert.Equal(t, "flagged", table.Schema.TargetColumn)
	assert.Equal(t, [][]float64{{5}, {3}, {1}, {2}}, table.Rows)
	assert.Equal(t, []string{"Y", "N", "Y", "N"}, table.Labels)
}

func TestTableSource_ExplicitSchemaDropsIncompleteRows(t *testing.T) {
	path := writeWorkbook(t, sheetRows)
	src := NewTableSource(DefaultExcelConfig(path), quiet())

	table, err := src.LoadTable(context.Background(), dataset.Schema{
		FeatureColumns: []string{"mnr", "rating"},
		TargetColumn:   "flagged",
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 5}, {0.5, 3}, {0.25, 2}}, table.Rows)
	assert.Equal(t, []string{"Y", "N", "N"}, table.Labels)
}

func TestTableSource_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.csv")
	content := "rating, rl ,flagged\n5,10,Y\n2,40,N\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := NewTableSource(DefaultExcelConfig(path), quiet()).LoadTable(context.Background(), dataset.Schema{})
	require.NoError(t, err)
	assert.Equal(t, []string{"rating", "rl"}, table.Schema.FeatureColumns)
	assert.Equal(t, 2, table.Len())
}

func TestTableSource_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewTableSource(DefaultExcelConfig(filepath.Join(t.TempDir(), "missing.xlsx")), quiet()).
		LoadTable(ctx, dataset.Schema{})
	assert.Error(t, err)

	path := writeWorkbook(t, sheetRows)
	cfg := DefaultExcelConfig(path)
	cfg.TargetColumn = "label"
	_, err = NewTableSource(cfg, quiet()).LoadTable(ctx, dataset.Schema{})
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)

	_, err = NewTableSource(DefaultExcelConfig(path), quiet()).LoadTable(ctx, dataset.Schema{
		FeatureColumns: []string{"friendCount"},
		TargetColumn:   "flagged",
	})
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)

	empty := writeWorkbook(t, [][]interface{}{
		{"rating", "flagged"},
		{"x", "Y"},
	})
	_, err = NewTableSource(DefaultExcelConfig(empty), quiet()).LoadTable(ctx, dataset.Schema{
		FeatureColumns: []string{"rating"},
		TargetColumn:   "flagged",
	})
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestDataReader_RejectsDuplicateHeaders(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"rating", "rating"},
		{1, 2},
	})
	_, err := NewDataReader(path, "", quiet()).ReadData()
	assert.Error(t, err)
}

func TestDataReader_StratifiedSample(t *testing.T) {
	r := NewDataReader("x.csv", "", quiet())
	assert.Equal(t, []int{0, 1, 2}, r.getStratifiedSample(3, 10))
	assert.Equal(t, []int{0, 25, 50, 75}, r.getStratifiedSample(100, 4))
}

func TestReportWriter_WritesWorkbook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewReportWriter(dir, quiet())
	report := &run.Report{
		Record: &run.Record{
			ID:        core.RunID("0190f5a2-0000-7000-8000-000000000001"),
			Algorithm: "naive_bayes",
			Status:    run.StatusCompleted,
			Accuracy:  0.75,
			Confusion: run.Confusion{{1, 1}, {0, 2}},
			History:   run.History{{Iteration: 1, TrainingSize: 6, HeldOutSize: 1, Promoted: 1, MeanConfidence: 0.9}},
		},
		ClassLabels: [2]string{"N", "Y"},
		TrueLabels:  []string{"N", "N", "Y", "Y"},
		Predictions: []string{"N", "Y", "Y", "Y"},
	}

	path, err := w.WriteReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-0190f5a2-0000-7000-8000-000000000001.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{metricsSheet, confusionSheet, predictionsSheet, historySheet}, f.GetSheetList())

	acc, err := f.GetCellValue(metricsSheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "0.75", acc)

	fp, err := f.GetCellValue(confusionSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "1", fp)
	header, err := f.GetCellValue(confusionSheet, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Y", header)

	rows, err := f.GetRows(predictionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"1", "N", "Y", "FALSE"}, rows[2])
}

func TestReportWriter_RejectsMismatchedPredictions(t *testing.T) {
	w := NewReportWriter(t.TempDir(), quiet())
	_, err := w.WriteReport(context.Background(), &run.Report{
		Record:      &run.Record{ID: core.NewRunID()},
		TrueLabels:  []string{"N"},
		Predictions: nil,
	})
	assert.Error(t, err)

	_, err = w.WriteReport(context.Background(), &run.Report{})
	assert.Error(t, err)
}
