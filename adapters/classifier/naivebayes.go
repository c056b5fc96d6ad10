package classifier

import (
	"fmt"
	"math"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// varSmoothing is the share of the largest feature variance added to every
// per-class variance.
const varSmoothing = 1e-9

// GaussianNB is a Gaussian naive Bayes classifier.
type GaussianNB struct {
	classes []string
	priors  []float64 // log priors
	means   [][]float64
	vars    [][]float64
	width   int
}

// NewGaussianNB returns an unfitted classifier.
func NewGaussianNB() *GaussianNB {
	return &GaussianNB{}
}

// Fit estimates per-class priors, means and variances. Refitting discards
// the previous model.
func (nb *GaussianNB) Fit(x [][]float64, y []string) error {
	width, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}

	classes := dataset.DistinctLabels(y)
	classIndex := indexOf(classes)

	// largest variance over the whole training set, per feature
	column := make([]float64, len(x))
	maxVar := 0.0
	for j := 0; j < width; j++ {
		for i, row := range x {
			column[i] = row[j]
		}
		_, v := stat.PopMeanVariance(column, nil)
		maxVar = math.Max(maxVar, v)
	}
	epsilon := varSmoothing * maxVar
	if epsilon == 0 {
		epsilon = varSmoothing
	}

	members := make([][]int, len(classes))
	for i, label := range y {
		k := classIndex[label]
		members[k] = append(members[k], i)
	}

	priors := make([]float64, len(classes))
	means := make([][]float64, len(classes))
	vars := make([][]float64, len(classes))
	for k, rows := range members {
		priors[k] = math.Log(float64(len(rows)) / float64(len(x)))
		means[k] = make([]float64, width)
		vars[k] = make([]float64, width)
		values := make([]float64, len(rows))
		for j := 0; j < width; j++ {
			for r, i := range rows {
				values[r] = x[i][j]
			}
			m, v := stat.PopMeanVariance(values, nil)
			means[k][j] = m
			vars[k][j] = v + epsilon
		}
	}

	nb.classes = classes
	nb.priors = priors
	nb.means = means
	nb.vars = vars
	nb.width = width
	return nil
}

// jointLogLikelihood returns log P(c) + log P(x|c) for every class.
func (nb *GaussianNB) jointLogLikelihood(row []float64) []float64 {
	out := make([]float64, len(nb.classes))
	for k := range nb.classes {
		ll := nb.priors[k]
		for j, xj := range row {
			v := nb.vars[k][j]
			d := xj - nb.means[k][j]
			ll -= 0.5 * (math.Log(2*math.Pi*v) + d*d/v)
		}
		out[k] = ll
	}
	return out
}

// PredictConfidence returns posterior class probabilities, one column per
// entry of Classes.
func (nb *GaussianNB) PredictConfidence(x [][]float64) ([][]float64, error) {
	if err := nb.checkInput(x); err != nil {
		return nil, err
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		jll := nb.jointLogLikelihood(row)
		norm := floats.LogSumExp(jll)
		for k := range jll {
			jll[k] = math.Exp(jll[k] - norm)
		}
		out[i] = jll
	}
	return out, nil
}

// Predict returns the most probable class per row. Ties go to the
// lexicographically-first class.
func (nb *GaussianNB) Predict(x [][]float64) ([]string, error) {
	if err := nb.checkInput(x); err != nil {
		return nil, err
	}
	out := make([]string, len(x))
	for i, row := range x {
		out[i] = nb.classes[floats.MaxIdx(nb.jointLogLikelihood(row))]
	}
	return out, nil
}

// Classes returns the sorted class labels seen by the last Fit.
func (nb *GaussianNB) Classes() []string {
	return append([]string(nil), nb.classes...)
}

func (nb *GaussianNB) checkInput(x [][]float64) error {
	if nb.classes == nil {
		return core.ErrNotFitted
	}
	return checkWidth(x, nb.width)
}

// checkTrainingSet validates a Fit call and returns the feature width.
func checkTrainingSet(x [][]float64, y []string) (int, error) {
	if len(x) == 0 {
		return 0, core.ErrEmptyDataset
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d rows but %d labels", core.ErrLabelMismatch, len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: no feature columns", core.ErrSchemaMismatch)
	}
	if err := checkWidth(x, width); err != nil {
		return 0, err
	}
	for i, label := range y {
		if label == "" {
			return 0, fmt.Errorf("%w: empty label at row %d", core.ErrSchemaMismatch, i)
		}
	}
	return width, nil
}

func checkWidth(x [][]float64, width int) error {
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, model expects %d", core.ErrSchemaMismatch, i, len(row), width)
		}
	}
	return nil
}

func indexOf(classes []string) map[string]int {
	m := make(map[string]int, len(classes))
	for i, c := range classes {
		m[c] = i
	}
	return m
}
