package report

import (
	"fmt"
	"strings"

	"reviewguard/domain/run"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// maxPredictionRows caps the predictions table; larger runs list a prefix.
const maxPredictionRows = 50

// Markdown renders a run summary. Predictions are listed only when the
// report carries them; a report rebuilt from a stored record shows the
// metrics, confusion matrix and iteration history.
func Markdown(report *run.Report) string {
	rec := report.Record
	neg, pos := classLabels(report)

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- **Algorithm:** %s\n", rec.Algorithm)
	fmt.Fprintf(&b, "- **Status:** %s", rec.Status)
	if rec.TerminalState != "" {
		fmt.Fprintf(&b, " (%s)", rec.TerminalState)
	}
	b.WriteString("\n")
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Created:** %s\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "- **Threshold:** %g, **max iterations:** %d, **test fraction:** %g, **seed:** %d\n",
		rec.Params.Threshold, rec.Params.MaxIterations, rec.Params.TestFraction, rec.Params.Seed)
	if rec.Fingerprint != "" {
		fmt.Fprintf(&b, "- **Fingerprint:** `%s`\n", rec.Fingerprint.Short())
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "\n> **Error:** %s\n", rec.Error)
	}

	b.WriteString("\n## Metrics\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Accuracy | %.4f |\n", rec.Accuracy)
	fmt.Fprintf(&b, "| Precision | %.4f |\n", rec.Precision)
	fmt.Fprintf(&b, "| Recall | %.4f |\n", rec.Recall)
	fmt.Fprintf(&b, "| F1 | %.4f |\n", rec.F1)
	fmt.Fprintf(&b, "| Promoted | %d |\n", rec.Promoted)
	fmt.Fprintf(&b, "| Pools (training / held-out / evaluation) | %d / %d / %d |\n",
		rec.TrainingSize, rec.HeldOutSize, rec.EvaluationSize)

	b.WriteString("\n## Confusion matrix\n\n")
	fmt.Fprintf(&b, "| true \\ predicted | %s | %s |\n|---|---|---|\n", neg, pos)
	fmt.Fprintf(&b, "| **%s** | %d | %d |\n", neg, rec.Confusion[0][0], rec.Confusion[0][1])
	fmt.Fprintf(&b, "| **%s** | %d | %d |\n", pos, rec.Confusion[1][0], rec.Confusion[1][1])

	if len(rec.History) > 0 {
		b.WriteString("\n## Iterations\n\n")
		b.WriteString("| Iteration | Training | Held-out | Promoted | Mean confidence |\n|---|---|---|---|---|\n")
		for _, it := range rec.History {
			fmt.Fprintf(&b, "| %d | %d | %d | %d | %.4f |\n",
				it.Iteration, it.TrainingSize, it.HeldOutSize, it.Promoted, it.MeanConfidence)
		}
	}

	if len(report.FeatureColumns) > 0 {
		fmt.Fprintf(&b, "\n## Features\n\n%s\n", strings.Join(report.FeatureColumns, ", "))
	}

	if n := len(report.Predictions); n > 0 && n == len(report.TrueLabels) {
		b.WriteString("\n## Predictions\n\n")
		if n > maxPredictionRows {
			fmt.Fprintf(&b, "First %d of %d evaluation rows.\n\n", maxPredictionRows, n)
			n = maxPredictionRows
		}
		b.WriteString("| Row | True | Predicted |\n|---|---|---|\n")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", i, report.TrueLabels[i], report.Predictions[i])
		}
	}
	return b.String()
}

// RenderHTML renders the run summary as a standalone HTML page
func RenderHTML(report *run.Report) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: fmt.Sprintf("reviewguard run %s", report.Record.ID),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(Markdown(report)), p, renderer)
}

func classLabels(report *run.Report) (string, string) {
	neg, pos := report.ClassLabels[0], report.ClassLabels[1]
	if pos == "" {
		pos = report.Record.Params.PositiveLabel
	}
	if pos == "" {
		pos = "positive"
	}
	if neg == "" {
		neg = "not " + pos
	}
	return neg, pos
}
