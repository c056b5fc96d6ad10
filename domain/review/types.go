package review

import (
	"sort"
	"strconv"
)

// Flag values carried by the review table's target column.
const (
	FlagFake      = "Y"
	FlagAuthentic = "N"
)

// Review is one review joined with its reviewer and restaurant records, plus
// the behavioral features computed from it.
type Review struct {
	ReviewID          string
	ReviewerID        string
	RestaurantID      string
	Date              string
	Rating            float64
	ReviewUsefulCount float64
	Content           string
	Flagged           string

	// Reviewer record
	ReviewerName string
	Location     string
	YelpJoinDate string
	// Numeric reviewer columns (friendCount, reviewCount, fanCount, ...). The
	// set depends on the source database.
	ReviewerStats map[string]float64

	// Restaurant record
	RestaurantRating float64

	// Engineered features
	MNR float64
	RL  float64
	RD  float64
	MCS float64
}

// Feature column names produced by the feature engineer.
const (
	ColumnRating            = "rating"
	ColumnReviewUsefulCount = "reviewUsefulCount"
	ColumnMNR               = "mnr"
	ColumnRL                = "rl"
	ColumnRD                = "rd"
	ColumnMCS               = "mcs"
	ColumnFlagged           = "flagged"
)

// BaseFeatureColumns are the per-review columns every review carries.
var BaseFeatureColumns = []string{
	ColumnRating,
	ColumnReviewUsefulCount,
	ColumnMNR,
	ColumnRL,
	ColumnRD,
	ColumnMCS,
}

// Value resolves a feature column by name.
func (r *Review) Value(column string) (float64, bool) {
	switch column {
	case ColumnRating:
		return r.Rating, true
	case ColumnReviewUsefulCount:
		return r.ReviewUsefulCount, true
	case ColumnMNR:
		return r.MNR, true
	case ColumnRL:
		return r.RL, true
	case ColumnRD:
		return r.RD, true
	case ColumnMCS:
		return r.MCS, true
	}
	v, ok := r.ReviewerStats[column]
	return v, ok
}

// StatColumns returns the reviewer stat columns shared by every review, sorted.
func StatColumns(reviews []Review) []string {
	if len(reviews) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for i := range reviews {
		for k := range reviews[i].ReviewerStats {
			counts[k]++
		}
	}
	var cols []string
	for k, n := range counts {
		if n == len(reviews) {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

// ParseNumber converts a raw column value into a float. It accepts numeric
// types as returned by database drivers as well as numeric strings.
func ParseNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
