package categorizer

import "sort"

// Scores holds support-weighted precision, recall and F1.
type Scores struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
}

type labelCounts struct {
	truePositive int
	predicted    int
	support      int
}

// WeightedScores computes per-label precision, recall and F1 over every label
// seen in either sequence and averages them weighted by each label's support
// in truth. Any undefined ratio counts as zero, and so does an empty input.
func WeightedScores(truth, predicted []string) Scores {
	n := len(truth)
	if len(predicted) < n {
		n = len(predicted)
	}
	counts := make(map[string]*labelCounts)
	get := func(label string) *labelCounts {
		c, ok := counts[label]
		if !ok {
			c = &labelCounts{}
			counts[label] = c
		}
		return c
	}
	for i := 0; i < n; i++ {
		t, p := get(truth[i]), get(predicted[i])
		t.support++
		p.predicted++
		if truth[i] == predicted[i] {
			t.truePositive++
		}
	}
	if n == 0 {
		return Scores{}
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var out Scores
	for _, label := range labels {
		c := counts[label]
		if c.support == 0 {
			continue
		}
		precision := ratio(c.truePositive, c.predicted)
		recall := ratio(c.truePositive, c.support)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		weight := float64(c.support) / float64(n)
		out.Precision += weight * precision
		out.Recall += weight * recall
		out.F1 += weight * f1
	}
	return out
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
