package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"reviewguard/domain/core"
)

// Confusion matrix axes. Rows are true labels, columns are predictions.
const (
	Negative = 0
	Positive = 1
)

// Metrics holds binary classification scores for one run. Every label other
// than PositiveLabel counts as negative.
type Metrics struct {
	Accuracy         float64   `json:"accuracy"`
	Precision        float64   `json:"precision"`
	Recall           float64   `json:"recall"`
	F1               float64   `json:"f1"`
	ConfusionMatrix  [2][2]int `json:"confusion_matrix"`
	PositiveLabel    string    `json:"positive_label"`
	NegativeLabel    string    `json:"negative_label"`
	FinalPredictions []string  `json:"final_predictions"`
	TrueLabels       []string  `json:"true_labels"`
}

// Evaluate compares predictions against ground truth. Precision, recall and F1
// are 0 when their denominator is 0.
func Evaluate(trueLabels, predicted []string, positiveLabel string) (*Metrics, error) {
	if len(trueLabels) != len(predicted) {
		return nil, fmt.Errorf("%w: %d true labels, %d predictions", core.ErrLabelMismatch, len(trueLabels), len(predicted))
	}
	if len(trueLabels) == 0 {
		return nil, fmt.Errorf("%w: nothing to evaluate", core.ErrEmptyDataset)
	}
	if positiveLabel == "" {
		return nil, fmt.Errorf("positive label must not be empty")
	}

	var cm [2][2]int
	correct := 0
	for i := range trueLabels {
		t := axis(trueLabels[i], positiveLabel)
		p := axis(predicted[i], positiveLabel)
		cm[t][p]++
		if trueLabels[i] == predicted[i] {
			correct++
		}
	}

	tp := float64(cm[Positive][Positive])
	fp := float64(cm[Negative][Positive])
	fn := float64(cm[Positive][Negative])

	m := &Metrics{
		Accuracy:         float64(correct) / float64(len(trueLabels)),
		Precision:        safeDiv(tp, tp+fp),
		Recall:           safeDiv(tp, tp+fn),
		ConfusionMatrix:  cm,
		PositiveLabel:    positiveLabel,
		NegativeLabel:    negativeLabel(trueLabels, predicted, positiveLabel),
		FinalPredictions: append([]string(nil), predicted...),
		TrueLabels:       append([]string(nil), trueLabels...),
	}
	m.F1 = safeDiv(2*m.Precision*m.Recall, m.Precision+m.Recall)
	return m, nil
}

// Support returns the number of true positives and true negatives in the evaluated set.
func (m *Metrics) Support() (positives, negatives int) {
	positives = m.ConfusionMatrix[Positive][Negative] + m.ConfusionMatrix[Positive][Positive]
	negatives = m.ConfusionMatrix[Negative][Negative] + m.ConfusionMatrix[Negative][Positive]
	return positives, negatives
}

// Format renders the metrics the way the command line prints them.
func (m *Metrics) Format(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Model Results\n", title)
	b.WriteString(strings.Repeat("--", 20))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Accuracy Score: %.4f\n", m.Accuracy)
	fmt.Fprintf(&b, "Precision Score: %.4f\n", m.Precision)
	fmt.Fprintf(&b, "Recall Score: %.4f\n", m.Recall)
	fmt.Fprintf(&b, "F1 Score: %.4f\n", m.F1)
	fmt.Fprintf(&b, "Confusion Matrix (rows=true, cols=predicted; %s, %s):\n", m.NegativeLabel, m.PositiveLabel)
	fmt.Fprintf(&b, "[[%d %d]\n [%d %d]]\n",
		m.ConfusionMatrix[Negative][Negative], m.ConfusionMatrix[Negative][Positive],
		m.ConfusionMatrix[Positive][Negative], m.ConfusionMatrix[Positive][Positive])
	return b.String()
}

func axis(label, positive string) int {
	if label == positive {
		return Positive
	}
	return Negative
}

// negativeLabel names the negative axis: the single non-positive label when
// there is exactly one, otherwise a generic name.
func negativeLabel(trueLabels, predicted []string, positive string) string {
	seen := make(map[string]struct{})
	for _, l := range trueLabels {
		if l != positive {
			seen[l] = struct{}{}
		}
	}
	for _, l := range predicted {
		if l != positive {
			seen[l] = struct{}{}
		}
	}
	if len(seen) == 1 {
		for l := range seen {
			return l
		}
	}
	names := make([]string, 0, len(seen))
	for l := range seen {
		names = append(names, l)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "not " + positive
	}
	return strings.Join(names, "|")
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
