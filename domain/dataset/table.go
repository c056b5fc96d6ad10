package dataset

import (
	"fmt"
	"math"
	"sort"

	"reviewguard/domain/core"
)

// Schema is the explicit descriptor of which columns a table carries. It
// replaces any notion of "drop these columns": whatever is not listed here
// never reaches a classifier.
type Schema struct {
	FeatureColumns []string `json:"feature_columns"`
	TargetColumn   string   `json:"target_column"`
}

// Validate checks that the schema names at least one feature, a target, and no duplicates.
func (s Schema) Validate() error {
	if len(s.FeatureColumns) == 0 {
		return fmt.Errorf("%w: no feature columns", core.ErrSchemaMismatch)
	}
	if s.TargetColumn == "" {
		return fmt.Errorf("%w: no target column", core.ErrSchemaMismatch)
	}
	seen := make(map[string]bool, len(s.FeatureColumns))
	for _, c := range s.FeatureColumns {
		if c == "" {
			return fmt.Errorf("%w: empty feature column name", core.ErrSchemaMismatch)
		}
		if c == s.TargetColumn {
			return core.NewSchemaError(c, "is both a feature and the target")
		}
		if seen[c] {
			return core.NewSchemaError(c, "listed twice")
		}
		seen[c] = true
	}
	return nil
}

// Width is the number of feature columns.
func (s Schema) Width() int {
	return len(s.FeatureColumns)
}

// ColumnIndex returns the position of a feature column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.FeatureColumns {
		if c == name {
			return i
		}
	}
	return -1
}

// Sample is one row of a feature table: its feature values and its label.
// Index is the row position in the source table and identifies the sample.
type Sample struct {
	Index    int
	Features []float64
	Label    string
}

// FeatureTable is the rectangular input handed to the self-training core:
// rows of float64 features plus one categorical target label per row.
type FeatureTable struct {
	Schema Schema
	Rows   [][]float64
	Labels []string
}

// NewFeatureTable validates shape and values and returns the table. Rows with a
// non-finite value are rejected; cleaning them out is the provider's job.
func NewFeatureTable(schema Schema, rows [][]float64, labels []string) (*FeatureTable, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", core.ErrSchemaMismatch, len(rows), len(labels))
	}
	width := schema.Width()
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, schema has %d columns", core.ErrSchemaMismatch, i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, core.NewSchemaError(schema.FeatureColumns[j], fmt.Sprintf("has non-finite value at row %d", i))
			}
		}
		if labels[i] == "" {
			return nil, core.NewSchemaError(schema.TargetColumn, fmt.Sprintf("is empty at row %d", i))
		}
	}
	return &FeatureTable{Schema: schema, Rows: rows, Labels: labels}, nil
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Sample returns a deep copy of row i.
func (t *FeatureTable) Sample(i int) Sample {
	features := make([]float64, len(t.Rows[i]))
	copy(features, t.Rows[i])
	return Sample{Index: i, Features: features, Label: t.Labels[i]}
}

// Classes returns the distinct labels in lexicographic order.
func (t *FeatureTable) Classes() []string {
	return DistinctLabels(t.Labels)
}

// ClassCounts returns the number of rows per label.
func (t *FeatureTable) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, l := range t.Labels {
		counts[l]++
	}
	return counts
}

// Fingerprint hashes the table for run bookkeeping.
func (t *FeatureTable) Fingerprint() core.Hash {
	return core.FingerprintTable(t.Schema.FeatureColumns, t.Rows, t.Labels)
}

// DistinctLabels returns the sorted set of labels.
func DistinctLabels(labels []string) []string {
	seen := make(map[string]struct{}, 2)
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
