package selftrain

import (
	"fmt"
	"math"
	"math/rand"

	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
)

// pools tracks which table rows are in Training and which are Held-out. Rows
// are referenced by index; Training rows carry the label they are trained on,
// which is the true label for the initial split and a pseudo-label for
// promoted rows.
type pools struct {
	table          *dataset.FeatureTable
	training       []int
	trainingLabels []string
	heldOut        []int
}

// splitEpsilon absorbs float error in testFraction*n so that 0.3 of 100 holds
// out 30 samples, not 31.
const splitEpsilon = 1e-9

// split performs the seeded randomized partition. The held-out size is
// ceil(n * testFraction), drawn from the front of a seeded permutation.
func split(table *dataset.FeatureTable, testFraction float64, seed int64) (*pools, error) {
	n := table.Len()
	nHeldOut := int(math.Ceil(testFraction*float64(n) - splitEpsilon))
	nTraining := n - nHeldOut
	if nHeldOut == 0 || nTraining == 0 {
		return nil, &RunError{
			TrainingSize: nTraining,
			HeldOutSize:  nHeldOut,
			Err:          fmt.Errorf("%w: %d samples at test fraction %g", core.ErrDegenerateSplit, n, testFraction),
		}
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	p := &pools{
		table:          table,
		training:       make([]int, 0, n),
		trainingLabels: make([]string, 0, n),
		heldOut:        make([]int, nHeldOut),
	}
	copy(p.heldOut, perm[:nHeldOut])
	for _, idx := range perm[nHeldOut:] {
		p.training = append(p.training, idx)
		p.trainingLabels = append(p.trainingLabels, table.Labels[idx])
	}
	return p, nil
}

func (p *pools) trainingSize() int { return len(p.training) }
func (p *pools) heldOutSize() int  { return len(p.heldOut) }

// trainingSet returns feature rows and labels for the current Training pool.
func (p *pools) trainingSet() ([][]float64, []string) {
	x := make([][]float64, len(p.training))
	for i, idx := range p.training {
		x[i] = p.table.Rows[idx]
	}
	y := make([]string, len(p.trainingLabels))
	copy(y, p.trainingLabels)
	return x, y
}

// heldOutFeatures returns feature rows for the current Held-out pool, aligned
// with p.heldOut.
func (p *pools) heldOutFeatures() [][]float64 {
	x := make([][]float64, len(p.heldOut))
	for i, idx := range p.heldOut {
		x[i] = p.table.Rows[idx]
	}
	return x
}

// frozenCopy deep-copies the current Held-out pool with its true labels.
func (p *pools) frozenCopy() []dataset.Sample {
	out := make([]dataset.Sample, len(p.heldOut))
	for i, idx := range p.heldOut {
		out[i] = p.table.Sample(idx)
	}
	return out
}

// promote moves the Held-out rows at the given positions into Training with
// their pseudo-labels. positions index into p.heldOut and must be ascending.
// The whole set is applied in one step.
func (p *pools) promote(positions []int, pseudoLabels []string) {
	if len(positions) == 0 {
		return
	}
	remaining := make([]int, 0, len(p.heldOut)-len(positions))
	next := 0
	for i, idx := range p.heldOut {
		if next < len(positions) && positions[next] == i {
			p.training = append(p.training, idx)
			p.trainingLabels = append(p.trainingLabels, pseudoLabels[next])
			next++
			continue
		}
		remaining = append(remaining, idx)
	}
	p.heldOut = remaining
}
