package categorizer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReportFormat selects how a Report is rendered.
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatYAML ReportFormat = "yaml"
)

// ParseReportFormat accepts text, json or yaml (case-insensitive).
func ParseReportFormat(s string) (ReportFormat, error) {
	switch f := ReportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Encode writes the report in the requested format.
func (r Report) Encode(w io.Writer, format ReportFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode report yaml: %w", err)
		}
		return nil
	default:
		_, err := io.WriteString(w, r.String())
		return err
	}
}

// String renders the human-readable report.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("Mistakes:\n")
	for _, m := range r.Mistakes {
		fmt.Fprintf(&b, "Text: %s\n", m.Text)
		fmt.Fprintf(&b, "Predicted: %s\n", m.Predicted)
		fmt.Fprintf(&b, "Correct: %s\n\n", m.Correct)
	}

	b.WriteString("Top Label Metrics:\n")
	writeScores(&b, r.TopLabel)
	b.WriteString("\nOverall Metrics:\n")
	writeScores(&b, r.Overall)

	b.WriteString("\nPrediction Accuracy:\n")
	fmt.Fprintf(&b, "Correct: %.2f%%\n", r.CorrectPercentage)
	fmt.Fprintf(&b, "Incorrect: %.2f%%\n", r.MistakePercentage)
	fmt.Fprintf(&b, "Total mistakes: %d\n", r.MistakeCount)
	fmt.Fprintf(&b, "Total matching texts: %d\n", r.MatchedCount)
	fmt.Fprintf(&b, "Total texts in train dataset: %d\n", r.GroundTruthCount)
	fmt.Fprintf(&b, "Total texts in infer dataset: %d\n", r.PredictionCount)

	b.WriteString("\nLabel Percentages:\n")
	for _, share := range r.LabelDistribution {
		fmt.Fprintf(&b, "%s: %.2f%%\n", share.Label, share.Percentage)
	}
	return b.String()
}

func writeScores(b *strings.Builder, s Scores) {
	fmt.Fprintf(b, "Precision: %.4f\n", s.Precision)
	fmt.Fprintf(b, "Recall: %.4f\n", s.Recall)
	fmt.Fprintf(b, "F1 Score: %.4f\n", s.F1)
}
