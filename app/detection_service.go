package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"reviewguard/adapters/classifier"
	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/domain/review"
	"reviewguard/domain/run"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/internal/evaluation"
	"reviewguard/internal/features"
	"reviewguard/internal/preprocess"
	"reviewguard/internal/selftrain"
	"reviewguard/ports"
)

// DetectionService runs the fake review pipeline: load, clean, engineer,
// balance, then self-train every requested classifier on the same table.
type DetectionService struct {
	reviews  ports.ReviewSource
	tables   ports.TableSource
	repo     ports.RunRepository
	writers  []ports.ReportWriter
	cleaner  *preprocess.Cleaner
	engineer *features.Engineer
	forest   classifier.ForestConfig
	events   EventSink
	logger   *internal.Logger
}

// DetectionServiceConfig wires a DetectionService. Exactly one of Reviews and
// Tables is expected; Tables wins when both are set.
type DetectionServiceConfig struct {
	Reviews    ports.ReviewSource
	Tables     ports.TableSource
	Repository ports.RunRepository
	Writers    []ports.ReportWriter
	Forest     classifier.ForestConfig
	Events     EventSink
	Logger     *internal.Logger
}

// DetectionRequest holds the per-run knobs
type DetectionRequest struct {
	Algorithms    []string `json:"algorithms"`
	Threshold     float64  `json:"threshold"`
	Iterations    int      `json:"iterations"`
	TestFraction  float64  `json:"test_fraction"`
	Seed          int64    `json:"seed"`
	PositiveLabel string   `json:"positive_label"`
	Workers       int      `json:"workers"`
	StreamID      string   `json:"stream_id"`
}

// RunOutcome is one algorithm's run. Err is set when the run failed; the
// record is persisted either way.
type RunOutcome struct {
	Record  *run.Record         `json:"record"`
	Metrics *evaluation.Metrics `json:"metrics,omitempty"`
	Reports []string            `json:"reports,omitempty"`
	Err     error               `json:"-"`
}

// DetectionResult is the outcome of one pipeline execution
type DetectionResult struct {
	TableFingerprint core.Hash      `json:"table_fingerprint"`
	Samples          int            `json:"samples"`
	FeatureColumns   []string       `json:"feature_columns"`
	Runs             []*RunOutcome  `json:"runs"`
	ClassCounts      map[string]int `json:"class_counts"`
	RuntimeMs        int64          `json:"runtime_ms"`
}

// Failed counts the runs that ended with an error
func (r *DetectionResult) Failed() int {
	n := 0
	for _, o := range r.Runs {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// NewDetectionService creates a detection service
func NewDetectionService(cfg DetectionServiceConfig) *DetectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	events := cfg.Events
	if events == nil {
		events = discardEvents{}
	}
	return &DetectionService{
		reviews:  cfg.Reviews,
		tables:   cfg.Tables,
		repo:     cfg.Repository,
		writers:  cfg.Writers,
		cleaner:  preprocess.NewCleaner(preprocess.EnglishStopwords(), logger.Named("Cleaner")),
		engineer: features.NewEngineer(logger.Named("Features")),
		forest:   cfg.Forest,
		events:   events,
		logger:   logger.Named("Detection"),
	}
}

// Run validates the request, prepares the feature table once and trains each
// algorithm on it in turn. Input errors are returned before anything runs;
// a failing algorithm is recorded and does not stop the others.
func (s *DetectionService) Run(ctx context.Context, req DetectionRequest) (*DetectionResult, error) {
	start := time.Now()

	opts := selftrain.Options{
		Threshold:     req.Threshold,
		MaxIterations: req.Iterations,
		TestFraction:  req.TestFraction,
		Seed:          req.Seed,
		PositiveLabel: req.PositiveLabel,
		Workers:       req.Workers,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(req.Algorithms) == 0 {
		return nil, errors.InvalidInput("no algorithms requested")
	}
	algorithms := make([]string, len(req.Algorithms))
	for i, a := range req.Algorithms {
		name, err := classifier.Canonical(a)
		if err != nil {
			return nil, err
		}
		algorithms[i] = name
	}

	table, err := s.PrepareTable(ctx, req.Seed)
	if err != nil {
		return nil, err
	}
	if classes := table.Classes(); len(classes) < 2 {
		return nil, fmt.Errorf("%w: found %v", core.ErrSingleClass, classes)
	}
	tableHash := table.Fingerprint()

	result := &DetectionResult{
		TableFingerprint: tableHash,
		Samples:          table.Len(),
		FeatureColumns:   table.Schema.FeatureColumns,
		ClassCounts:      table.ClassCounts(),
	}
	for _, algorithm := range algorithms {
		outcome, err := s.runAlgorithm(ctx, algorithm, table, tableHash, opts, req.StreamID)
		if err != nil {
			return nil, err
		}
		result.Runs = append(result.Runs, outcome)
	}
	result.RuntimeMs = time.Since(start).Milliseconds()

	s.logger.Info("pipeline finished: %d runs, %d failed, %dms", len(result.Runs), result.Failed(), result.RuntimeMs)
	return result, nil
}

// PrepareTable produces the balanced feature table the classifiers see
func (s *DetectionService) PrepareTable(ctx context.Context, seed int64) (*dataset.FeatureTable, error) {
	if s.tables != nil {
		table, err := s.tables.LoadTable(ctx, dataset.Schema{})
		if err != nil {
			return nil, errors.Wrap(err, "failed to load feature table")
		}
		return balanceTable(table, seed)
	}
	if s.reviews == nil {
		return nil, errors.ConfigInvalid("detection service has no review or table source")
	}

	loaded, err := s.reviews.LoadReviews(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reviews")
	}
	s.logger.Info("loaded %d reviews", len(loaded))

	cleaned := s.cleaner.Clean(loaded)
	engineered := s.engineer.Apply(cleaned)
	balanced := features.UnderSample(engineered, func(r review.Review) string { return r.Flagged }, seed)
	s.logger.Info("balanced %d engineered reviews down to %d", len(engineered), len(balanced))

	if len(balanced) == 0 {
		return nil, fmt.Errorf("%w: no reviews survived cleaning", core.ErrEmptyDataset)
	}
	return features.BuildTable(balanced, features.ReviewSchema(balanced))
}

func balanceTable(table *dataset.FeatureTable, seed int64) (*dataset.FeatureTable, error) {
	indices := make([]int, table.Len())
	for i := range indices {
		indices[i] = i
	}
	kept := features.UnderSample(indices, func(i int) string { return table.Labels[i] }, seed)

	rows := make([][]float64, len(kept))
	labels := make([]string, len(kept))
	for j, i := range kept {
		rows[j] = table.Rows[i]
		labels[j] = table.Labels[i]
	}
	return dataset.NewFeatureTable(table.Schema, rows, labels)
}

// runAlgorithm trains one classifier and persists the run. Only a failure to
// persist is returned as an error.
func (s *DetectionService) runAlgorithm(ctx context.Context, algorithm string, table *dataset.FeatureTable, tableHash core.Hash, opts selftrain.Options, streamID string) (*RunOutcome, error) {
	logger := s.logger.Named(algorithm)

	forest := s.forest
	forest.Seed = opts.Seed
	if opts.Workers > 0 {
		forest.Workers = opts.Workers
	}
	factory, err := classifier.NewFactory(algorithm, forest, logger)
	if err != nil {
		return nil, err
	}

	params := run.Params{
		Algorithm:     algorithm,
		Threshold:     opts.Threshold,
		MaxIterations: opts.MaxIterations,
		TestFraction:  opts.TestFraction,
		Seed:          opts.Seed,
		PositiveLabel: opts.PositiveLabel,
	}
	record := &run.Record{
		ID:               core.NewRunID(),
		Algorithm:        algorithm,
		Params:           params,
		TableFingerprint: tableHash,
		Fingerprint:      run.NewRunFingerprint(params, tableHash),
		CreatedAt:        time.Now().UTC(),
	}
	outcome := &RunOutcome{Record: record}
	event := func(kind string) RunEvent {
		return RunEvent{StreamID: streamID, RunID: record.ID, Algorithm: algorithm, Type: kind, Timestamp: time.Now().UTC()}
	}

	controller := selftrain.NewController(factory(),
		selftrain.WithLogger(logger.Named("Controller")),
		selftrain.WithProgress(func(it selftrain.IterationStats) {
			e := event(EventIteration)
			e.Iteration = &it
			s.events.Publish(e)
		}),
	)
	res, trainErr := controller.Train(ctx, table, opts)
	if trainErr != nil {
		logger.Error("run %s failed: %v", record.ID, trainErr)
		record.Status = run.StatusFailed
		record.Error = trainErr.Error()
		outcome.Err = trainErr
		var rerr *selftrain.RunError
		if stderrors.As(trainErr, &rerr) {
			record.Iterations = rerr.Iteration
			record.TrainingSize = rerr.TrainingSize
			record.HeldOutSize = rerr.HeldOutSize
		}
	} else {
		applyResult(record, res)
		outcome.Metrics = res.Metrics
		logger.Info("\n%s", res.Metrics.Format(algorithm))
	}

	if s.repo != nil {
		if err := s.repo.Save(context.WithoutCancel(ctx), record); err != nil {
			return nil, errors.Wrapf(err, "failed to save run %s", record.ID)
		}
	}

	if trainErr != nil {
		e := event(EventRunFailed)
		e.Error = record.Error
		s.events.Publish(e)
		return outcome, nil
	}
	s.events.Publish(event(EventRunCompleted))

	outcome.Reports = s.writeReports(ctx, &run.Report{
		Record:         record,
		ClassLabels:    [2]string{res.Metrics.NegativeLabel, res.Metrics.PositiveLabel},
		TrueLabels:     res.Metrics.TrueLabels,
		Predictions:    res.Metrics.FinalPredictions,
		FeatureColumns: table.Schema.FeatureColumns,
	})
	return outcome, nil
}

func applyResult(record *run.Record, res *selftrain.Result) {
	record.Status = run.StatusCompleted
	record.TerminalState = res.State.String()
	record.Iterations = res.Iterations
	record.Promoted = res.Promoted
	record.TrainingSize = res.TrainingSize
	record.HeldOutSize = res.HeldOutSize
	record.EvaluationSize = res.EvaluationSize
	record.Accuracy = res.Metrics.Accuracy
	record.Precision = res.Metrics.Precision
	record.Recall = res.Metrics.Recall
	record.F1 = res.Metrics.F1
	record.Confusion = run.Confusion(res.Metrics.ConfusionMatrix)
	record.DurationMs = res.Duration.Milliseconds()

	record.History = make(run.History, len(res.History))
	for i, h := range res.History {
		record.History[i] = run.IterationSummary{
			Iteration:      h.Iteration,
			TrainingSize:   h.TrainingSize,
			HeldOutSize:    h.HeldOutSize,
			Promoted:       h.Promoted,
			MeanConfidence: h.MeanConfidence,
		}
	}
}

// writeReports renders the run with every writer. Report failures are logged
// and do not fail the run.
func (s *DetectionService) writeReports(ctx context.Context, report *run.Report) []string {
	var paths []string
	for _, w := range s.writers {
		path, err := w.WriteReport(ctx, report)
		if err != nil {
			s.logger.Warn("report for run %s not written: %v", report.Record.ID, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// GetRun returns a stored run
func (s *DetectionService) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	if s.repo == nil {
		return nil, errors.ConfigInvalid("no run repository configured")
	}
	return s.repo.Get(ctx, id)
}

// ListRuns returns stored runs, newest first
func (s *DetectionService) ListRuns(ctx context.Context, limit, offset int) ([]*run.Record, error) {
	if s.repo == nil {
		return nil, errors.ConfigInvalid("no run repository configured")
	}
	return s.repo.List(ctx, limit, offset)
}
