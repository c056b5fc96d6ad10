package features

import (
	"math"
	"strings"

	"reviewguard/domain/review"
	"reviewguard/internal"

	"github.com/montanaflynn/stats"
)

// Engineer derives the behavioral features mnr, rl, rd and mcs.
type Engineer struct {
	logger *internal.Logger
}

// NewEngineer creates a feature engineer.
func NewEngineer(logger *internal.Logger) *Engineer {
	if logger == nil {
		logger = internal.DefaultLogger.Named("Features")
	}
	return &Engineer{logger: logger}
}

// Apply returns copies of reviews with engineered features set. Rows left
// with a non-finite numeric value or without a flag are dropped.
//
//   - mnr: reviews the reviewer wrote on that date, over the maximum of that
//     count across all (reviewer, date) pairs
//   - rl:  number of whitespace-separated words in the cleaned content
//   - rd:  |rating - restaurant rating| / 4
//   - mcs: the reviewer's maximum TF-IDF cosine similarity between two of
//     their reviews
func (e *Engineer) Apply(reviews []review.Review) []review.Review {
	out := make([]review.Review, len(reviews))
	copy(out, reviews)

	mnr := maxReviewsPerDay(out)
	mcs := maxSimilarityByReviewer(out)
	for i := range out {
		r := &out[i]
		r.MNR = mnr[dayKey{r.ReviewerID, r.Date}]
		r.RL = float64(len(strings.Fields(r.Content)))
		r.RD = math.Abs(r.Rating-r.RestaurantRating) / 4
		r.MCS = mcs[r.ReviewerID]
	}

	kept := out[:0]
	for _, r := range out {
		if complete(&r) {
			kept = append(kept, r)
		}
	}
	if dropped := len(out) - len(kept); dropped > 0 {
		e.logger.Warn("dropped %d reviews with missing values", dropped)
	}
	e.logger.Info("engineered features for %d reviews", len(kept))
	return kept
}

type dayKey struct {
	reviewer string
	date     string
}

func maxReviewsPerDay(reviews []review.Review) map[dayKey]float64 {
	counts := make(map[dayKey]float64)
	for _, r := range reviews {
		counts[dayKey{r.ReviewerID, r.Date}]++
	}
	values := make([]float64, 0, len(counts))
	for _, c := range counts {
		values = append(values, c)
	}
	peak, err := stats.Max(values)
	if err != nil || peak <= 0 {
		return counts
	}
	for k, c := range counts {
		counts[k] = c / peak
	}
	return counts
}

func maxSimilarityByReviewer(reviews []review.Review) map[string]float64 {
	docs := make(map[string][]string)
	for _, r := range reviews {
		docs[r.ReviewerID] = append(docs[r.ReviewerID], r.Content)
	}
	out := make(map[string]float64, len(docs))
	for reviewer, texts := range docs {
		out[reviewer] = MaxContentSimilarity(texts)
	}
	return out
}

func complete(r *review.Review) bool {
	if r.Flagged == "" {
		return false
	}
	for _, v := range []float64{r.Rating, r.ReviewUsefulCount, r.RestaurantRating, r.MNR, r.RL, r.RD, r.MCS} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range r.ReviewerStats {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
