package categorizer

import (
	"fmt"
	"sort"
)

// degenerateScore is assigned to every label when a paragraph's scores are all equal.
const degenerateScore = 100.0

// ProcessOptions selects the output shape of the adjustment stage.
type ProcessOptions struct {
	// Raw disables min/max normalization.
	Raw bool
	// TopLabelOnly keeps only the name of the highest-ranked label.
	TopLabelOnly bool
}

// NormalizeScores rescales a paragraph's scores into [0, 100] relative to
// their own min and max. When every score is equal each becomes 100.
func NormalizeScores(scores []RawScore) []RawScore {
	out := make([]RawScore, len(scores))
	copy(out, scores)
	if len(out) == 0 {
		return out
	}
	lo, hi := out[0].Score, out[0].Score
	for _, s := range out[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}
	if hi == lo {
		for i := range out {
			out[i].Score = degenerateScore
		}
		return out
	}
	span := hi - lo
	for i := range out {
		out[i].Score = (out[i].Score - lo) / span * 100
	}
	return out
}

// RankScores sorts descending by score. Ties keep their input order.
func RankScores(scores []RawScore) []RawScore {
	out := make([]RawScore, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Process turns one paragraph's raw classifier output into its Prediction:
// adjust, normalize unless disabled, rank, then select the output shape.
func (t *RuleTable) Process(text string, raw []RawScore, opts ProcessOptions) (Prediction, error) {
	pred, _, err := t.process(text, raw, opts)
	return pred, err
}

func (t *RuleTable) process(text string, raw []RawScore, opts ProcessOptions) (Prediction, []effect, error) {
	if len(raw) == 0 {
		return Prediction{}, nil, fmt.Errorf("%w: %q", ErrEmptyScores, truncateText(text, previewLen))
	}
	adjusted, effects := t.adjust(text, raw)
	if !opts.Raw {
		adjusted = NormalizeScores(adjusted)
	}
	ranked := RankScores(adjusted)
	if opts.TopLabelOnly {
		return Prediction{Text: text, TopLabel: ranked[0].Label}, effects, nil
	}
	return Prediction{Text: text, Ranked: ranked}, effects, nil
}
