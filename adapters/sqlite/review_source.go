package sqlite

import (
	"context"
	"database/sql"
	"math"
	"strings"

	"reviewguard/domain/review"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/ports"

	"github.com/jmoiron/sqlx"
)

// reviewerTextColumns are reviewer columns that are not numeric stats.
var reviewerTextColumns = map[string]bool{
	"reviewerID":   true,
	"name":         true,
	"location":     true,
	"yelpJoinDate": true,
}

type reviewRow struct {
	ReviewID          string          `db:"reviewID"`
	ReviewerID        string          `db:"reviewerID"`
	RestaurantID      string          `db:"restaurantID"`
	Date              sql.NullString  `db:"date"`
	Rating            sql.NullFloat64 `db:"rating"`
	ReviewUsefulCount sql.NullFloat64 `db:"reviewUsefulCount"`
	ReviewContent     sql.NullString  `db:"reviewContent"`
	Flagged           string          `db:"flagged"`
}

type restaurantRow struct {
	RestaurantID     string          `db:"restaurantID"`
	RestaurantRating sql.NullFloat64 `db:"restaurantRating"`
}

type reviewerRecord struct {
	name     string
	location string
	joinDate string
	stats    map[string]float64
}

// ReviewSource loads labelled reviews from a Yelp-style SQLite database with
// review, reviewer and restaurant tables.
type ReviewSource struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// NewReviewSource creates a review source over db.
func NewReviewSource(db *sqlx.DB, logger *internal.Logger) ports.ReviewSource {
	if logger == nil {
		logger = internal.DefaultLogger.Named("Loader")
	}
	return &ReviewSource{db: db, logger: logger}
}

// LoadReviews returns reviews flagged Y or N, inner-joined with their reviewer
// and restaurant rows, in review table order. NULL numeric values load as NaN
// so that feature engineering drops those rows.
func (s *ReviewSource) LoadReviews(ctx context.Context) ([]review.Review, error) {
	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT reviewID, reviewerID, restaurantID, date, rating,
		       usefulCount AS reviewUsefulCount, reviewContent, flagged
		FROM review
		WHERE flagged IN ('Y', 'N')
		ORDER BY rowid
	`); err != nil {
		return nil, errors.DatabaseError("failed to load reviews", err)
	}

	reviewers, err := s.loadReviewers(ctx)
	if err != nil {
		return nil, err
	}

	var restaurants []restaurantRow
	if err := s.db.SelectContext(ctx, &restaurants, `
		SELECT restaurantID, rating AS restaurantRating FROM restaurant
	`); err != nil {
		return nil, errors.DatabaseError("failed to load restaurants", err)
	}
	ratings := make(map[string]float64, len(restaurants))
	for _, r := range restaurants {
		ratings[r.RestaurantID] = nullFloat(r.RestaurantRating)
	}

	out := make([]review.Review, 0, len(rows))
	for _, row := range rows {
		rv, ok := reviewers[row.ReviewerID]
		if !ok {
			continue
		}
		rating, ok := ratings[row.RestaurantID]
		if !ok {
			continue
		}
		out = append(out, review.Review{
			ReviewID:          row.ReviewID,
			ReviewerID:        row.ReviewerID,
			RestaurantID:      row.RestaurantID,
			Date:              row.Date.String,
			Rating:            nullFloat(row.Rating),
			ReviewUsefulCount: nullFloat(row.ReviewUsefulCount),
			Content:           strings.ToValidUTF8(row.ReviewContent.String, ""),
			Flagged:           row.Flagged,
			ReviewerName:      rv.name,
			Location:          rv.location,
			YelpJoinDate:      rv.joinDate,
			ReviewerStats:     rv.stats,
			RestaurantRating:  rating,
		})
	}

	s.logger.Info("loaded %d reviews (%d flagged rows, %d reviewers, %d restaurants)",
		len(out), len(rows), len(reviewers), len(restaurants))
	return out, nil
}

// loadReviewers reads the reviewer table with whatever columns it has. Every
// column other than the id, name, location and join date is a numeric stat.
func (s *ReviewSource) loadReviewers(ctx context.Context) (map[string]reviewerRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM reviewer`)
	if err != nil {
		return nil, errors.DatabaseError("failed to load reviewers", err)
	}
	defer rows.Close()

	out := make(map[string]reviewerRecord)
	for rows.Next() {
		values := make(map[string]interface{})
		if err := rows.MapScan(values); err != nil {
			return nil, errors.DatabaseError("failed to scan reviewer", err)
		}
		id := text(values["reviewerID"])
		rec := reviewerRecord{
			name:     text(values["name"]),
			location: text(values["location"]),
			joinDate: text(values["yelpJoinDate"]),
			stats:    make(map[string]float64),
		}
		for col, v := range values {
			if reviewerTextColumns[col] {
				continue
			}
			if v == nil {
				rec.stats[col] = math.NaN()
				continue
			}
			if f, ok := review.ParseNumber(v); ok {
				rec.stats[col] = f
			}
		}
		out[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to read reviewers", err)
	}
	return out, nil
}

func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func text(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}
