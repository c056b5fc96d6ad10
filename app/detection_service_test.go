package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"reviewguard/adapters/classifier"
	"reviewguard/adapters/sqlite"
	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/domain/run"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/internal/testkit"
	"reviewguard/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunRepository struct {
	mock.Mock
}

func (m *mockRunRepository) Save(ctx context.Context, record *run.Record) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockRunRepository) Get(ctx context.Context, id core.RunID) (*run.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*run.Record)
	return rec, args.Error(1)
}

func (m *mockRunRepository) List(ctx context.Context, limit, offset int) ([]*run.Record, error) {
	args := m.Called(ctx, limit, offset)
	recs, _ := args.Get(0).([]*run.Record)
	return recs, args.Error(1)
}

func (m *mockRunRepository) Close() error {
	return m.Called().Error(0)
}

type staticTables struct {
	table *dataset.FeatureTable
	err   error
}

func (s staticTables) LoadTable(context.Context, dataset.Schema) (*dataset.FeatureTable, error) {
	return s.table, s.err
}

type recordingWriter struct {
	reports []*run.Report
	err     error
}

func (w *recordingWriter) WriteReport(_ context.Context, report *run.Report) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.reports = append(w.reports, report)
	return fmt.Sprintf("mem://%s", report.Record.ID), nil
}

func quiet() *internal.Logger {
	return internal.NewLoggerTo(io.Discard, internal.LogLevelError)
}

func sampleReviewSource(t *testing.T) *sqlite.ReviewSource {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reviews.db")
	_, err := testkit.NewReviewDataGenerator(testkit.DefaultReviewConfig(), quiet()).CreateDatabase(ctx, path)
	require.NoError(t, err)

	db, err := sqlite.OpenExisting(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewReviewSource(db, quiet()).(*sqlite.ReviewSource)
}

func request(algorithms ...string) DetectionRequest {
	return DetectionRequest{
		Algorithms:    algorithms,
		Threshold:     0.7,
		Iterations:    5,
		TestFraction:  0.25,
		Seed:          42,
		PositiveLabel: "Y",
		Workers:       2,
	}
}

func TestDetectionService_RunOnSampleDatabase(t *testing.T) {
	repo := new(mockRunRepository)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*run.Record")).Return(nil).Twice()
	writer := &recordingWriter{}

	forest := classifier.DefaultForestConfig()
	forest.Trees = 15
	svc := NewDetectionService(DetectionServiceConfig{
		Reviews:    sampleReviewSource(t),
		Repository: repo,
		Writers:    []ports.ReportWriter{writer},
		Forest:     forest,
		Logger:     quiet(),
	})

	result, err := svc.Run(context.Background(), request("nb", "random_forest"))
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.Equal(t, 0, result.Failed())
	assert.Equal(t, result.ClassCounts["Y"], result.ClassCounts["N"], "table is balanced")
	assert.Equal(t, result.Samples, result.ClassCounts["Y"]*2)
	assert.Contains(t, result.FeatureColumns, "mcs")
	assert.Contains(t, result.FeatureColumns, "friendCount")
	require.Len(t, result.Runs, 2)

	for i, algorithm := range []string{classifier.AlgorithmNaiveBayes, classifier.AlgorithmRandomForest} {
		outcome := result.Runs[i]
		rec := outcome.Record
		assert.Equal(t, algorithm, rec.Algorithm)
		assert.Equal(t, run.StatusCompleted, rec.Status)
		assert.Equal(t, result.TableFingerprint, rec.TableFingerprint)
		assert.Equal(t, run.NewRunFingerprint(rec.Params, rec.TableFingerprint), rec.Fingerprint)
		assert.Len(t, rec.History, rec.Iterations)
		assert.Equal(t, result.Samples, rec.TrainingSize+rec.HeldOutSize)
		assert.Equal(t, outcome.Metrics.Accuracy, rec.Accuracy)
		assert.Equal(t, [2][2]int(rec.Confusion), outcome.Metrics.ConfusionMatrix)
		assert.Equal(t, []string{fmt.Sprintf("mem://%s", rec.ID)}, outcome.Reports)
	}
	require.Len(t, writer.reports, 2)
	assert.Equal(t, [2]string{"N", "Y"}, writer.reports[0].ClassLabels)
	assert.Len(t, writer.reports[0].Predictions, result.Runs[0].Record.EvaluationSize)
}

func TestDetectionService_SameSeedSameTable(t *testing.T) {
	src := sampleReviewSource(t)
	svc := NewDetectionService(DetectionServiceConfig{Reviews: src, Logger: quiet()})

	a, err := svc.PrepareTable(context.Background(), 42)
	require.NoError(t, err)
	b, err := svc.PrepareTable(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestDetectionService_InputErrors(t *testing.T) {
	repo := new(mockRunRepository)
	svc := NewDetectionService(DetectionServiceConfig{
		Tables:     staticTables{err: fmt.Errorf("must not be loaded")},
		Repository: repo,
		Logger:     quiet(),
	})
	ctx := context.Background()

	req := request("nb")
	req.Threshold = 1.01
	_, err := svc.Run(ctx, req)
	assert.ErrorIs(t, err, core.ErrInvalidThreshold)

	_, err = svc.Run(ctx, request("svm"))
	assert.ErrorIs(t, err, core.ErrUnknownAlgorithm)

	_, err = svc.Run(ctx, request())
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDetectionService_SingleClassTable(t *testing.T) {
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x"}, TargetColumn: "flagged"},
		[][]float64{{1}, {2}, {3}},
		[]string{"N", "N", "N"},
	)
	require.NoError(t, err)
	svc := NewDetectionService(DetectionServiceConfig{Tables: staticTables{table: table}, Logger: quiet()})

	_, err = svc.Run(context.Background(), request("nb"))
	assert.ErrorIs(t, err, core.ErrSingleClass)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestDetectionService_FailedRunIsRecorded(t *testing.T) {
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x"}, TargetColumn: "flagged"},
		[][]float64{{1}, {2}},
		[]string{"N", "Y"},
	)
	require.NoError(t, err)

	repo := new(mockRunRepository)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(r *run.Record) bool {
		return r.Status == run.StatusFailed && r.Error != ""
	})).Return(nil).Once()
	writer := &recordingWriter{}
	svc := NewDetectionService(DetectionServiceConfig{
		Tables:     staticTables{table: table},
		Repository: repo,
		Writers:    []ports.ReportWriter{writer},
		Logger:     quiet(),
	})

	// 0.99 of two rows holds out both, leaving nothing to train on
	req := request("nb")
	req.TestFraction = 0.99
	result, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.Equal(t, 1, result.Failed())
	assert.ErrorIs(t, result.Runs[0].Err, core.ErrDegenerateSplit)
	assert.Equal(t, 2, result.Runs[0].Record.HeldOutSize)
	assert.Empty(t, writer.reports, "failed runs get no report")
}

func TestDetectionService_SaveFailure(t *testing.T) {
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x"}, TargetColumn: "flagged"},
		[][]float64{{0}, {0.1}, {0.2}, {0.3}, {5}, {5.1}, {5.2}, {5.3}},
		[]string{"N", "N", "N", "N", "Y", "Y", "Y", "Y"},
	)
	require.NoError(t, err)

	repo := new(mockRunRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.DatabaseError("disk full", nil))
	svc := NewDetectionService(DetectionServiceConfig{Tables: staticTables{table: table}, Repository: repo, Logger: quiet()})

	_, err = svc.Run(context.Background(), request("nb"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
}

func TestDetectionService_ReportFailureDoesNotFailRun(t *testing.T) {
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x"}, TargetColumn: "flagged"},
		[][]float64{{0}, {0.1}, {0.2}, {0.3}, {5}, {5.1}, {5.2}, {5.3}},
		[]string{"N", "N", "N", "N", "Y", "Y", "Y", "Y"},
	)
	require.NoError(t, err)

	good := &recordingWriter{}
	svc := NewDetectionService(DetectionServiceConfig{
		Tables:  staticTables{table: table},
		Writers: []ports.ReportWriter{&recordingWriter{err: fmt.Errorf("read-only")}, good},
		Logger:  quiet(),
	})
	result, err := svc.Run(context.Background(), request("nb"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed())
	assert.Len(t, result.Runs[0].Reports, 1)
	assert.Len(t, good.reports, 1)
}

func TestBalanceTable(t *testing.T) {
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x"}, TargetColumn: "flagged"},
		[][]float64{{1}, {2}, {3}, {4}, {5}},
		[]string{"N", "N", "N", "Y", "Y"},
	)
	require.NoError(t, err)

	balanced, err := balanceTable(table, 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"N": 2, "Y": 2}, balanced.ClassCounts())
	for i, row := range balanced.Rows {
		want := "N"
		if row[0] >= 4 {
			want = "Y"
		}
		assert.Equal(t, want, balanced.Labels[i], "rows keep their labels")
	}
}

func TestDetectionService_Lookups(t *testing.T) {
	repo := new(mockRunRepository)
	id := core.NewRunID()
	repo.On("Get", mock.Anything, id).Return(&run.Record{ID: id}, nil)
	repo.On("List", mock.Anything, 10, 0).Return([]*run.Record{{ID: id}}, nil)
	svc := NewDetectionService(DetectionServiceConfig{Repository: repo, Logger: quiet()})

	rec, err := svc.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)

	list, err := svc.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = NewDetectionService(DetectionServiceConfig{Logger: quiet()}).GetRun(context.Background(), id)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

type eventRecorder struct {
	events []RunEvent
}

func (r *eventRecorder) Publish(e RunEvent) { r.events = append(r.events, e) }

func TestDetectionService_PublishesRunEvents(t *testing.T) {
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x"}, TargetColumn: "flagged"},
		[][]float64{{0}, {0.1}, {0.2}, {0.3}, {5}, {5.1}, {5.2}, {5.3}},
		[]string{"N", "N", "N", "N", "Y", "Y", "Y", "Y"},
	)
	require.NoError(t, err)

	sink := &eventRecorder{}
	svc := NewDetectionService(DetectionServiceConfig{Tables: staticTables{table: table}, Events: sink, Logger: quiet()})
	req := request("nb")
	req.StreamID = "batch-1"
	result, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	rec := result.Runs[0].Record
	require.Len(t, sink.events, rec.Iterations+1)
	for i, e := range sink.events[:rec.Iterations] {
		assert.Equal(t, EventIteration, e.Type)
		assert.Equal(t, i+1, e.Iteration.Iteration)
		assert.Equal(t, rec.ID, e.RunID)
		assert.Equal(t, "batch-1", e.StreamID)
	}
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, EventRunCompleted, last.Type)
	assert.Nil(t, last.Iteration)
}
