package categorizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel performs Unicode normalization and trims whitespace so label
// names written by hand in different editors compare equal.
func NormalizeLabel(label string) string {
	normed := norm.NFKC.String(label)
	normed = strings.TrimSpace(normed)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

// foldText case-folds text for case-insensitive substring matching.
// A fresh Caser is used per call since cases.Caser is not safe for concurrent use.
func foldText(text string) string {
	return cases.Fold().String(text)
}

func foldAll(words []string) []string {
	if len(words) == 0 {
		return nil
	}
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = foldText(w)
	}
	return out
}
