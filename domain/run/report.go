package run

// IterationSummary is the pool bookkeeping of one self-training iteration.
type IterationSummary struct {
	Iteration      int     `json:"iteration"`
	TrainingSize   int     `json:"training_size"`
	HeldOutSize    int     `json:"held_out_size"`
	Promoted       int     `json:"promoted"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Report bundles everything needed to render a finished run.
type Report struct {
	Record         *Record   `json:"record"`
	ClassLabels    [2]string `json:"class_labels"` // [negative, positive]
	TrueLabels     []string  `json:"true_labels"`
	Predictions    []string  `json:"predictions"`
	FeatureColumns []string  `json:"feature_columns"`
}
