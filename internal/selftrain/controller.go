package selftrain

import (
	"context"
	"fmt"
	"math"
	"time"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/internal"
	"reviewguard/internal/evaluation"
	"reviewguard/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Options configures one self-training run.
type Options struct {
	// Threshold is the confidence a prediction must strictly exceed to be
	// promoted as a pseudo-label. Must be in (0, 1].
	Threshold float64
	// MaxIterations bounds the promotion loop. Zero skips it entirely.
	MaxIterations int
	// TestFraction is the share of samples initially held out. Must be in (0, 1).
	TestFraction float64
	// Seed drives the initial split.
	Seed int64
	// PositiveLabel is the class precision, recall and F1 are reported for.
	PositiveLabel string
	// Workers bounds the number of concurrent scoring chunks per iteration.
	// Values below 2 score the held-out pool in one call.
	Workers int
}

// DefaultOptions mirrors the settings fake review detection was tuned with.
func DefaultOptions() Options {
	return Options{
		Threshold:     0.7,
		MaxIterations: 15,
		TestFraction:  0.25,
		Seed:          42,
		PositiveLabel: "Y",
		Workers:       1,
	}
}

// Validate checks the numeric ranges of the options.
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold <= 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: got %v", core.ErrInvalidThreshold, o.Threshold)
	}
	if math.IsNaN(o.TestFraction) || o.TestFraction <= 0 || o.TestFraction >= 1 {
		return fmt.Errorf("%w: got %v", core.ErrInvalidTestFraction, o.TestFraction)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("%w: got %d", core.ErrInvalidIterations, o.MaxIterations)
	}
	if o.PositiveLabel == "" {
		return fmt.Errorf("positive label must not be empty")
	}
	return nil
}

// IterationStats records the pools after one iteration's promotion.
type IterationStats struct {
	Iteration      int     `json:"iteration"`
	TrainingSize   int     `json:"training_size"`
	HeldOutSize    int     `json:"held_out_size"`
	Promoted       int     `json:"promoted"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Result is the outcome of a completed run.
type Result struct {
	Metrics        *evaluation.Metrics `json:"metrics"`
	State          State               `json:"-"`
	Iterations     int                 `json:"iterations"`
	Promoted       int                 `json:"promoted"`
	TrainingSize   int                 `json:"training_size"`
	HeldOutSize    int                 `json:"held_out_size"`
	EvaluationSize int                 `json:"evaluation_size"`
	History        []IterationStats    `json:"history"`
	Duration       time.Duration       `json:"duration"`
}

// ProgressFunc is called after every iteration.
type ProgressFunc func(IterationStats)

// Controller runs the self-training loop around one classifier. A controller
// owns its classifier's state for the duration of Train and must not be used
// by two runs at once.
type Controller struct {
	classifier ports.Classifier
	logger     *internal.Logger
	progress   ProgressFunc
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger; the default is internal.DefaultLogger.
func WithLogger(logger *internal.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each iteration.
func WithProgress(fn ProgressFunc) ControllerOption {
	return func(c *Controller) {
		c.progress = fn
	}
}

// NewController wraps classifier in a self-training controller.
func NewController(classifier ports.Classifier, opts ...ControllerOption) *Controller {
	c := &Controller{
		classifier: classifier,
		logger:     internal.DefaultLogger.Named("Controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Train splits table into Training and Held-out pools, then repeatedly fits
// the classifier on Training and promotes Held-out samples whose maximum
// confidence strictly exceeds opts.Threshold, labelled with the classifier's
// prediction. The loop stops when Held-out is empty (Converged) or after
// opts.MaxIterations iterations (Exhausted); an iteration that promotes nothing
// does not end the loop. Final predictions are made on a frozen copy of the
// initial Held-out pool and scored against its true labels.
func (c *Controller) Train(ctx context.Context, table *dataset.FeatureTable, opts Options) (*Result, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, core.ErrEmptyDataset
	}
	if classes := table.Classes(); len(classes) < 2 {
		return nil, fmt.Errorf("%w: found %v", core.ErrSingleClass, classes)
	}

	p, err := split(table, opts.TestFraction, opts.Seed)
	if err != nil {
		return nil, err
	}
	frozen := p.frozenCopy()
	total := p.trainingSize() + p.heldOutSize()

	c.logger.Info("starting: %d samples, training=%d, held-out=%d, threshold=%.3f, max iterations=%d",
		table.Len(), p.trainingSize(), p.heldOutSize(), opts.Threshold, opts.MaxIterations)

	state := StateInitialized
	iteration := 0
	promotedTotal := 0
	fitted := false
	history := make([]IterationStats, 0, opts.MaxIterations)

	for p.heldOutSize() > 0 && iteration < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, c.fail(iteration, p, err)
		}
		iteration++
		state = StateIterating

		x, y := p.trainingSet()
		if err := c.classifier.Fit(x, y); err != nil {
			return nil, c.fail(iteration, p, core.NewClassifierError("fit", err))
		}
		fitted = true

		predictions, maxConfidence, err := c.score(ctx, p.heldOutFeatures(), opts.Workers)
		if err != nil {
			return nil, c.fail(iteration, p, err)
		}

		positions, pseudoLabels := selectPromotions(predictions, maxConfidence, opts.Threshold)
		p.promote(positions, pseudoLabels)
		promotedTotal += len(positions)

		if p.trainingSize()+p.heldOutSize() != total {
			return nil, c.fail(iteration, p, fmt.Errorf("pool sizes drifted from %d", total))
		}

		meanConfidence, _ := stats.Mean(maxConfidence)
		iterStats := IterationStats{
			Iteration:      iteration,
			TrainingSize:   p.trainingSize(),
			HeldOutSize:    p.heldOutSize(),
			Promoted:       len(positions),
			MeanConfidence: meanConfidence,
		}
		history = append(history, iterStats)
		c.logger.Debug("iteration %d: promoted %d, training=%d, held-out=%d, mean confidence=%.4f",
			iteration, len(positions), iterStats.TrainingSize, iterStats.HeldOutSize, meanConfidence)
		if c.progress != nil {
			c.progress(iterStats)
		}
	}

	if p.heldOutSize() == 0 {
		state = StateConverged
	} else {
		state = StateExhausted
	}

	// With a zero iteration budget the loop never fit; fit once on the
	// initial Training split. Otherwise the model from the last iteration is
	// evaluated as is.
	if !fitted {
		x, y := p.trainingSet()
		if err := c.classifier.Fit(x, y); err != nil {
			return nil, c.fail(iteration, p, core.NewClassifierError("fit", err))
		}
	}

	evalX := make([][]float64, len(frozen))
	trueLabels := make([]string, len(frozen))
	for i, s := range frozen {
		evalX[i] = s.Features
		trueLabels[i] = s.Label
	}
	finalPredictions, err := c.classifier.Predict(evalX)
	if err != nil {
		return nil, c.fail(iteration, p, core.NewClassifierError("predict", err))
	}

	metrics, err := evaluation.Evaluate(trueLabels, finalPredictions, opts.PositiveLabel)
	if err != nil {
		return nil, c.fail(iteration, p, err)
	}

	c.logger.Info("finished %s after %d iterations: promoted %d, accuracy=%.4f, f1=%.4f",
		state, iteration, promotedTotal, metrics.Accuracy, metrics.F1)

	return &Result{
		Metrics:        metrics,
		State:          state,
		Iterations:     iteration,
		Promoted:       promotedTotal,
		TrainingSize:   p.trainingSize(),
		HeldOutSize:    p.heldOutSize(),
		EvaluationSize: len(frozen),
		History:        history,
		Duration:       time.Since(start),
	}, nil
}

// score predicts labels and maximum confidences for x. With more than one
// worker the rows are scored in concurrent chunks; results are merged before
// anything is promoted.
func (c *Controller) score(ctx context.Context, x [][]float64, workers int) ([]string, []float64, error) {
	predictions := make([]string, len(x))
	maxConfidence := make([]float64, len(x))
	width := len(c.classifier.Classes())

	scoreChunk := func(lo, hi int) error {
		chunk := x[lo:hi]
		labels, err := c.classifier.Predict(chunk)
		if err != nil {
			return core.NewClassifierError("predict", err)
		}
		confidence, err := c.classifier.PredictConfidence(chunk)
		if err != nil {
			return core.NewClassifierError("predict confidence", err)
		}
		if len(labels) != len(chunk) || len(confidence) != len(chunk) {
			return core.NewClassifierError("score", fmt.Errorf("got %d labels and %d confidence rows for %d samples",
				len(labels), len(confidence), len(chunk)))
		}
		for i, row := range confidence {
			if len(row) == 0 || (width > 0 && len(row) != width) {
				return core.NewClassifierError("score", fmt.Errorf("confidence row has %d entries for %d classes", len(row), width))
			}
			predictions[lo+i] = labels[i]
			maxConfidence[lo+i] = floats.Max(row)
		}
		return nil
	}

	if workers < 2 || len(x) < 2*workers {
		if err := scoreChunk(0, len(x)); err != nil {
			return nil, nil, err
		}
		return predictions, maxConfidence, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunkSize := (len(x) + workers - 1) / workers
	for lo := 0; lo < len(x); lo += chunkSize {
		lo := lo
		hi := min(lo+chunkSize, len(x))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return scoreChunk(lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return predictions, maxConfidence, nil
}

// selectPromotions returns the positions whose maximum confidence is strictly
// greater than threshold, in ascending order, with their predicted labels.
func selectPromotions(predictions []string, maxConfidence []float64, threshold float64) ([]int, []string) {
	var positions []int
	var labels []string
	for i, conf := range maxConfidence {
		if conf > threshold {
			positions = append(positions, i)
			labels = append(labels, predictions[i])
		}
	}
	return positions, labels
}

func (c *Controller) fail(iteration int, p *pools, err error) error {
	runErr := &RunError{
		Iteration:    iteration,
		TrainingSize: p.trainingSize(),
		HeldOutSize:  p.heldOutSize(),
		Err:          err,
	}
	c.logger.Error("%v", runErr)
	return runErr
}
