package ports

// Classifier is the trainable model the self-training loop drives. Any
// algorithm that can fit on labeled rows and score unlabeled rows per class
// satisfies it.
type Classifier interface {
	// Fit trains on feature rows and their labels, replacing any previous state.
	Fit(features [][]float64, labels []string) error

	// Predict returns one label per row.
	Predict(features [][]float64) ([]string, error)

	// PredictConfidence returns one score vector per row. Column j scores
	// Classes()[j]; each vector sums to approximately 1.
	PredictConfidence(features [][]float64) ([][]float64, error)

	// Classes returns the labels seen by the last Fit, in lexicographic order.
	Classes() []string
}

// ClassifierFactory builds a fresh, unfitted classifier. Each training run
// gets its own instance so concurrent runs never share model state.
type ClassifierFactory func() Classifier
