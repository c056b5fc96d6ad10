package classifier

import (
	"fmt"
	"strings"

	"reviewguard/domain/core"
	"reviewguard/internal"
	"reviewguard/ports"
)

// Supported algorithm names.
const (
	AlgorithmRandomForest = "random_forest"
	AlgorithmNaiveBayes   = "naive_bayes"
)

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	return []string{AlgorithmRandomForest, AlgorithmNaiveBayes}
}

// NewFactory returns a factory producing fresh, unfitted classifiers for
// algorithm. Forest settings are ignored by other algorithms.
func NewFactory(algorithm string, forest ForestConfig, logger *internal.Logger) (ports.ClassifierFactory, error) {
	name, err := Canonical(algorithm)
	if err != nil {
		return nil, err
	}
	if name == AlgorithmNaiveBayes {
		return func() ports.Classifier { return NewGaussianNB() }, nil
	}
	return func() ports.Classifier { return NewRandomForest(forest, logger) }, nil
}

// Canonical maps an algorithm alias to its canonical name.
func Canonical(algorithm string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case AlgorithmRandomForest, "rf", "forest":
		return AlgorithmRandomForest, nil
	case AlgorithmNaiveBayes, "nb", "gaussian_nb":
		return AlgorithmNaiveBayes, nil
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", core.ErrUnknownAlgorithm, algorithm, strings.Join(Algorithms(), ", "))
}
