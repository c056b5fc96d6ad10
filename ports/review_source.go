package ports

import (
	"context"

	"reviewguard/domain/dataset"
	"reviewguard/domain/review"
)

// ReviewSource loads reviews joined with their reviewer and restaurant records.
type ReviewSource interface {
	LoadReviews(ctx context.Context) ([]review.Review, error)
}

// TableSource loads an already engineered feature table, bypassing the
// review cleaning and feature engineering steps.
type TableSource interface {
	LoadTable(ctx context.Context, schema dataset.Schema) (*dataset.FeatureTable, error)
}
