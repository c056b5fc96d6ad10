package classifier

import (
	"math"
	"math/rand"
	"runtime"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/internal"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	Trees           int
	MaxDepth        int // <= 0 grows trees until leaves are pure
	MaxFeatures     int // <= 0 uses sqrt(width)
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            int64
	Workers         int
}

// DefaultForestConfig matches the forest the detector was tuned with.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           500,
		MaxDepth:        14,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
		Workers:         runtime.NumCPU(),
	}
}

// RandomForest is a bagged ensemble of entropy-criterion decision trees.
// Confidence is the mean of the per-tree leaf class distributions.
type RandomForest struct {
	cfg    ForestConfig
	logger *internal.Logger

	classes []string
	trees   []*decisionTree
	width   int
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(cfg ForestConfig, logger *internal.Logger) *RandomForest {
	if cfg.Trees <= 0 {
		cfg.Trees = 1
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger.Named("RandomForest")
	}
	return &RandomForest{cfg: cfg, logger: logger}
}

// Fit grows cfg.Trees trees on bootstrap samples of (x, y). Tree t draws from
// its own RNG seeded with Seed+t, so the fitted forest does not depend on
// the number of workers.
func (f *RandomForest) Fit(x [][]float64, y []string) error {
	width, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}

	classes := dataset.DistinctLabels(y)
	classIndex := indexOf(classes)
	labels := make([]int, len(y))
	for i, l := range y {
		labels[i] = classIndex[l]
	}

	params := treeParams{
		maxDepth:        f.cfg.MaxDepth,
		maxFeatures:     f.cfg.MaxFeatures,
		minSamplesSplit: f.cfg.MinSamplesSplit,
		minSamplesLeaf:  f.cfg.MinSamplesLeaf,
	}
	if params.maxFeatures <= 0 || params.maxFeatures > width {
		params.maxFeatures = max(1, int(math.Sqrt(float64(width))))
	}

	trees := make([]*decisionTree, f.cfg.Trees)
	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for t := range trees {
		t := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.cfg.Seed + int64(t)))
			bootstrap := make([]int, len(x))
			for i := range bootstrap {
				bootstrap[i] = rng.Intn(len(x))
			}
			trees[t] = growTree(x, labels, len(classes), bootstrap, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.classes = classes
	f.trees = trees
	f.width = width

	if f.logger.Enabled(internal.LogLevelDebug) {
		deepest := 0
		for _, t := range trees {
			deepest = max(deepest, t.depth())
		}
		f.logger.Debug("fitted %d trees on %d rows x %d features, max depth %d", len(trees), len(x), width, deepest)
	}
	return nil
}

// PredictConfidence averages leaf class distributions over all trees.
func (f *RandomForest) PredictConfidence(x [][]float64) ([][]float64, error) {
	if f.trees == nil {
		return nil, core.ErrNotFitted
	}
	if err := checkWidth(x, f.width); err != nil {
		return nil, err
	}

	out := make([][]float64, len(x))
	scale := 1 / float64(len(f.trees))
	predictRows := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			acc := make([]float64, len(f.classes))
			for _, t := range f.trees {
				floats.Add(acc, t.leaf(x[i]))
			}
			floats.Scale(scale, acc)
			out[i] = acc
		}
	}

	workers := f.cfg.Workers
	if workers < 2 || len(x) < 2*workers {
		predictRows(0, len(x))
		return out, nil
	}
	var g errgroup.Group
	chunk := (len(x) + workers - 1) / workers
	for lo := 0; lo < len(x); lo += chunk {
		lo := lo
		hi := min(lo+chunk, len(x))
		g.Go(func() error {
			predictRows(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Predict returns the class with the highest mean confidence. Ties go to the
// lexicographically-first class.
func (f *RandomForest) Predict(x [][]float64) ([]string, error) {
	confidence, err := f.PredictConfidence(x)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(confidence))
	for i, row := range confidence {
		out[i] = f.classes[floats.MaxIdx(row)]
	}
	return out, nil
}

// Classes returns the sorted class labels seen by the last Fit.
func (f *RandomForest) Classes() []string {
	return append([]string(nil), f.classes...)
}
