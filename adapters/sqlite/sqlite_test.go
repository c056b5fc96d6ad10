package sqlite

import (
	"context"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"reviewguard/domain/core"
	"reviewguard/domain/run"
	"reviewguard/internal"
	"reviewguard/internal/migration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *internal.Logger {
	return internal.NewLoggerTo(io.Discard, internal.LogLevelError)
}

func newReviewDB(t *testing.T) *ReviewSource {
	t.Helper()
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.CreateReviewTables(ctx, db, []string{"friendCount", "fanCount"}))
	stmts := []string{
		`INSERT INTO reviewer (reviewerID, name, location, yelpJoinDate, friendCount, fanCount) VALUES
			('R1', 'Ann', 'Chicago, IL', 'March 2015', 4, 1),
			('R2', 'Bob', 'Houston, TX', 'May 2016', NULL, 0)`,
		`INSERT INTO restaurant (restaurantID, rating) VALUES ('S1', 4.0), ('S2', 3.5)`,
		`INSERT INTO review (reviewID, reviewerID, restaurantID, date, rating, usefulCount, reviewContent, flagged) VALUES
			('V1', 'R1', 'S1', '` + "\n" + `2016-01-02', 5, 3, 'Great food!', 'Y'),
			('V2', 'R2', 'S2', '2016-01-03', 2, 0, 'Cold soup', 'N'),
			('V3', 'R1', 'S9', '2016-01-04', 4, 1, 'Unknown restaurant', 'N'),
			('V4', 'R9', 'S1', '2016-01-05', 4, 1, 'Unknown reviewer', 'Y')`,
		`INSERT INTO review (reviewID, reviewerID, restaurantID, rating, flagged) VALUES ('V5', 'R1', 'S1', 3, NULL)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewReviewSource(db, quiet()).(*ReviewSource)
}

func TestReviewSource_LoadReviews(t *testing.T) {
	src := newReviewDB(t)
	reviews, err := src.LoadReviews(context.Background())
	require.NoError(t, err)

	// V3 and V4 have no matching restaurant/reviewer; V5 is unflagged
	require.Len(t, reviews, 2)

	v1 := reviews[0]
	assert.Equal(t, "V1", v1.ReviewID)
	assert.Equal(t, "\n2016-01-02", v1.Date, "loader does not clean")
	assert.Equal(t, 5.0, v1.Rating)
	assert.Equal(t, 3.0, v1.ReviewUsefulCount)
	assert.Equal(t, 4.0, v1.RestaurantRating)
	assert.Equal(t, "Ann", v1.ReviewerName)
	assert.Equal(t, "March 2015", v1.YelpJoinDate)
	assert.Equal(t, map[string]float64{"friendCount": 4, "fanCount": 1}, v1.ReviewerStats)
	assert.Equal(t, "Y", v1.Flagged)

	v2 := reviews[1]
	assert.True(t, math.IsNaN(v2.ReviewerStats["friendCount"]), "NULL stats load as NaN")
	assert.Equal(t, 3.5, v2.RestaurantRating)
}

func TestOpenExisting_Missing(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}

func newRunRepository(t *testing.T) *RunRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	repo := NewRunRepository(db).(*RunRepository)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunRepository_RoundTrip(t *testing.T) {
	repo := newRunRepository(t)
	ctx := context.Background()

	record := &run.Record{
		Algorithm:        "random_forest",
		Params:           run.Params{Algorithm: "random_forest", Threshold: 0.7, MaxIterations: 15, TestFraction: 0.25, Seed: 42, PositiveLabel: "Y"},
		Status:           run.StatusCompleted,
		TerminalState:    "converged",
		Iterations:       3,
		Promoted:         20,
		Accuracy:         0.75,
		Precision:        0.7,
		Recall:           0.8,
		F1:               0.7466,
		Confusion:        run.Confusion{{7, 3}, {2, 8}},
		History:          run.History{{Iteration: 1, TrainingSize: 70, HeldOutSize: 10, Promoted: 20, MeanConfidence: 0.82}},
		TableFingerprint: core.Hash("table"),
		Fingerprint:      core.Hash("fp"),
		DurationMs:       1200,
	}
	require.NoError(t, repo.Save(ctx, record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.CreatedAt.IsZero())

	got, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Params, got.Params)
	assert.Equal(t, record.Confusion, got.Confusion)
	assert.Equal(t, record.History, got.History)
	assert.Equal(t, "converged", got.TerminalState)
	assert.InDelta(t, 0.7466, got.F1, 1e-12)
	assert.WithinDuration(t, record.CreatedAt, got.CreatedAt, time.Second)

	record.Status = run.StatusFailed
	record.Error = "classifier failure"
	require.NoError(t, repo.Save(ctx, record))
	got, err = repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusFailed, got.Status)
	assert.Equal(t, "classifier failure", got.Error)
}

func TestRunRepository_GetMissing(t *testing.T) {
	repo := newRunRepository(t)
	_, err := repo.Get(context.Background(), core.NewRunID())
	assert.ErrorIs(t, err, core.ErrRunNotFound)
	assert.True(t, core.IsNotFoundError(err))
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	repo := newRunRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &run.Record{
			Algorithm:  "naive_bayes",
			Status:     run.StatusCompleted,
			Iterations: i,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Iterations)
	assert.Equal(t, 1, list[1].Iterations)

	list, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Iterations)
	assert.Empty(t, list[0].History)
}
