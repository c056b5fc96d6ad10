package excel

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/ports"
)

// TableSource loads an engineered feature table from an xlsx or csv sheet
type TableSource struct {
	config ExcelConfig
	logger *internal.Logger
}

// NewTableSource creates a spreadsheet-backed table source
func NewTableSource(config ExcelConfig, logger *internal.Logger) ports.TableSource {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &TableSource{config: config, logger: logger.Named("TableSource")}
}

// LoadTable reads the sheet and returns the columns named by schema. An empty
// FeatureColumns list selects every numeric column except the target. Rows with
// a missing or unparseable value are dropped.
func (s *TableSource) LoadTable(ctx context.Context, schema dataset.Schema) (*dataset.FeatureTable, error) {
	if schema.TargetColumn == "" {
		schema.TargetColumn = s.config.TargetColumn
	}

	reader := NewDataReader(s.config.FilePath, s.config.Sheet, s.logger.Named("DataReader"))
	data, err := reader.ReadData()
	if err != nil {
		return nil, errors.IOError("failed to read feature file", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !slices.Contains(data.Headers, schema.TargetColumn) {
		return nil, core.NewSchemaError(schema.TargetColumn, "not found in sheet header")
	}
	if len(schema.FeatureColumns) == 0 {
		schema.FeatureColumns = reader.NumericColumns(data, schema.TargetColumn)
		s.logger.Info("inferred %d numeric feature columns", len(schema.FeatureColumns))
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	for _, c := range schema.FeatureColumns {
		if !slices.Contains(data.Headers, c) {
			return nil, core.NewSchemaError(c, "not found in sheet header")
		}
	}

	rows := make([][]float64, 0, len(data.Rows))
	labels := make([]string, 0, len(data.Rows))
	dropped := 0
	for _, raw := range data.Rows {
		row, ok := parseRow(raw, schema.FeatureColumns)
		label := raw[schema.TargetColumn]
		if !ok || label == "" {
			dropped++
			continue
		}
		rows = append(rows, row)
		labels = append(labels, label)
	}
	if dropped > 0 {
		s.logger.Warn("dropped %d of %d rows with missing or non-numeric values", dropped, len(data.Rows))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no complete rows", core.ErrEmptyDataset, s.config.FilePath)
	}

	return dataset.NewFeatureTable(schema, rows, labels)
}

func parseRow(raw RawRowData, columns []string) ([]float64, bool) {
	row := make([]float64, len(columns))
	for j, c := range columns {
		v, err := strconv.ParseFloat(raw[c], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		row[j] = v
	}
	return row, true
}
