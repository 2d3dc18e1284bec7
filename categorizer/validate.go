package categorizer

import (
	"fmt"
	"sort"
)

const (
	previewLen = 100
	ellipsis   = "..."
)

// Mistake is a matched prediction whose top label differs from ground truth.
type Mistake struct {
	Text      string `json:"text" yaml:"text"`
	Predicted string `json:"predicted" yaml:"predicted"`
	Correct   string `json:"correct" yaml:"correct"`
}

// LabelShare is how often a label was ranked first across all predictions.
type LabelShare struct {
	Label      string  `json:"label" yaml:"label"`
	Count      int     `json:"count" yaml:"count"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Report is the validation outcome. It is recomputed on every run.
type Report struct {
	TopLabel          Scores       `json:"topLabel" yaml:"topLabel"`
	Overall           Scores       `json:"overall" yaml:"overall"`
	Mistakes          []Mistake    `json:"mistakes" yaml:"mistakes"`
	CorrectPercentage float64      `json:"correctPercentage" yaml:"correctPercentage"`
	MistakePercentage float64      `json:"mistakePercentage" yaml:"mistakePercentage"`
	MistakeCount      int          `json:"mistakeCount" yaml:"mistakeCount"`
	MatchedCount      int          `json:"matchedCount" yaml:"matchedCount"`
	GroundTruthCount  int          `json:"groundTruthCount" yaml:"groundTruthCount"`
	PredictionCount   int          `json:"predictionCount" yaml:"predictionCount"`
	LabelDistribution []LabelShare `json:"labelDistribution" yaml:"labelDistribution"`
}

// Validate compares predictions against ground truth matched by exact text.
// Predictions whose text is absent from ground truth are left out of every
// metric except the label distribution. The table resolves ground-truth
// label indices to names.
func Validate(preds []Prediction, truth []GroundTruthEntry, table *RuleTable) (Report, error) {
	truthByText := make(map[string]string, len(truth))
	for _, entry := range truth {
		label, err := table.LabelAt(entry.Label)
		if err != nil {
			return Report{}, fmt.Errorf("resolve ground truth %q: %w", truncateText(entry.Text, previewLen), err)
		}
		truthByText[entry.Text] = label
	}

	report := Report{
		Mistakes:         []Mistake{},
		GroundTruthCount: len(truth),
		PredictionCount:  len(preds),
	}
	var topTrue, topPred, allTrue, allPred []string
	for _, pred := range preds {
		correct, ok := truthByText[pred.Text]
		if !ok {
			continue
		}
		report.MatchedCount++
		top := pred.Top()
		topTrue = append(topTrue, correct)
		topPred = append(topPred, top)
		if top != correct {
			report.Mistakes = append(report.Mistakes, Mistake{
				Text:      truncateText(pred.Text, previewLen),
				Predicted: top,
				Correct:   correct,
			})
		}
		for _, label := range pred.Labels() {
			allTrue = append(allTrue, correct)
			allPred = append(allPred, label)
		}
	}
	if report.MatchedCount == 0 {
		return Report{}, fmt.Errorf("%w: %d predictions, %d ground-truth texts", ErrNoMatchedPredictions, len(preds), len(truth))
	}

	report.TopLabel = WeightedScores(topTrue, topPred)
	report.Overall = WeightedScores(allTrue, allPred)
	report.MistakeCount = len(report.Mistakes)
	report.MistakePercentage = float64(report.MistakeCount) / float64(report.MatchedCount) * 100
	report.CorrectPercentage = 100 - report.MistakePercentage
	report.LabelDistribution = labelDistribution(preds)
	return report, nil
}

// labelDistribution counts top labels over every prediction, most common
// first; ties keep first-seen order.
func labelDistribution(preds []Prediction) []LabelShare {
	index := make(map[string]int)
	var shares []LabelShare
	for _, pred := range preds {
		top := pred.Top()
		i, ok := index[top]
		if !ok {
			i = len(shares)
			index[top] = i
			shares = append(shares, LabelShare{Label: top})
		}
		shares[i].Count++
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Count > shares[j].Count })
	for i := range shares {
		shares[i].Percentage = float64(shares[i].Count) / float64(len(preds)) * 100
	}
	return shares
}

func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + ellipsis
}
