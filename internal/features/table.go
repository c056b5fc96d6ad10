package features

import (
	"fmt"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/domain/review"
)

// ReviewSchema returns the feature schema for engineered reviews: the review's
// own numeric columns, the reviewer stat columns every review carries, then
// the engineered features. The target is the flagged column.
func ReviewSchema(reviews []review.Review) dataset.Schema {
	cols := []string{review.ColumnRating, review.ColumnReviewUsefulCount}
	cols = append(cols, review.StatColumns(reviews)...)
	cols = append(cols, review.ColumnMNR, review.ColumnRL, review.ColumnRD, review.ColumnMCS)
	return dataset.Schema{FeatureColumns: cols, TargetColumn: review.ColumnFlagged}
}

// BuildTable projects reviews onto schema. Every feature column must resolve
// on every review.
func BuildTable(reviews []review.Review, schema dataset.Schema) (*dataset.FeatureTable, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if schema.TargetColumn != review.ColumnFlagged {
		return nil, core.NewSchemaError(schema.TargetColumn, "is not a review target column")
	}

	rows := make([][]float64, len(reviews))
	labels := make([]string, len(reviews))
	for i := range reviews {
		r := &reviews[i]
		row := make([]float64, len(schema.FeatureColumns))
		for j, col := range schema.FeatureColumns {
			v, ok := r.Value(col)
			if !ok {
				return nil, core.NewSchemaError(col, fmt.Sprintf("is missing on review %s", r.ReviewID))
			}
			row[j] = v
		}
		rows[i] = row
		labels[i] = r.Flagged
	}
	return dataset.NewFeatureTable(schema, rows, labels)
}
