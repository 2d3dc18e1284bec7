package categorizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	boostFactor   = 1.3
	penaltyFactor = 0.5
)

// effect records which rules fired for one label on one paragraph.
type effect uint8

const (
	effectGated effect = 1 << iota
	effectBoosted
	effectPenalized
)

type compiledRule struct {
	increase []string
	decrease []string
	mustHave []string
}

// RuleTable is the ordered, read-only label rule table. The position of a
// rule is the label id the classifier was trained with.
type RuleTable struct {
	rules    []LabelRule
	compiled []compiledRule
	byLabel  map[string]int
}

type ruleJSON struct {
	Label      *string  `json:"label"`
	Color      string   `json:"color"`
	IncreaseIf []string `json:"increaseIf"`
	DecreaseIf []string `json:"decreaseIf"`
	MustHave   []string `json:"mustHave"`
}

// NewRuleTable validates the rules and compiles their triggers.
func NewRuleTable(rules []LabelRule) (*RuleTable, error) {
	t := &RuleTable{
		rules:    make([]LabelRule, 0, len(rules)),
		compiled: make([]compiledRule, 0, len(rules)),
		byLabel:  make(map[string]int, len(rules)),
	}
	for i, rule := range rules {
		label := NormalizeLabel(rule.Label)
		if label == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty label", ErrInvalidRuleTable, i)
		}
		if prev, ok := t.byLabel[label]; ok {
			return nil, fmt.Errorf("%w: label %q used by rules %d and %d", ErrInvalidRuleTable, label, prev, i)
		}
		for _, set := range [][]string{rule.IncreaseIf, rule.DecreaseIf, rule.MustHave} {
			for _, trigger := range set {
				if strings.TrimSpace(trigger) == "" {
					return nil, fmt.Errorf("%w: label %q has a blank trigger", ErrInvalidRuleTable, label)
				}
			}
		}
		rule.Label = label
		rule.IncreaseIf = append([]string(nil), rule.IncreaseIf...)
		rule.DecreaseIf = append([]string(nil), rule.DecreaseIf...)
		rule.MustHave = append([]string(nil), rule.MustHave...)
		t.byLabel[label] = i
		t.rules = append(t.rules, rule)
		t.compiled = append(t.compiled, compiledRule{
			increase: foldAll(rule.IncreaseIf),
			decrease: foldAll(rule.DecreaseIf),
			mustHave: foldAll(rule.MustHave),
		})
	}
	return t, nil
}

// ParseRuleTable decodes the persisted table: a JSON object whose keys are
// the integer label ids 0..n-1.
func ParseRuleTable(data []byte) (*RuleTable, error) {
	var raw map[string]ruleJSON
	if err := decodeStrict(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleTable, err)
	}
	indices := make([]int, 0, len(raw))
	byIndex := make(map[int]ruleJSON, len(raw))
	for key, value := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: key %q is not a label index", ErrInvalidRuleTable, key)
		}
		if _, dup := byIndex[idx]; dup {
			return nil, fmt.Errorf("%w: index %d appears twice", ErrInvalidRuleTable, idx)
		}
		if value.Label == nil {
			return nil, fmt.Errorf("%w: entry %q has no label", ErrInvalidRuleTable, key)
		}
		byIndex[idx] = value
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	rules := make([]LabelRule, len(indices))
	for pos, idx := range indices {
		if idx != pos {
			return nil, fmt.Errorf("%w: label indices must run from 0 without gaps, missing %d", ErrInvalidRuleTable, pos)
		}
		value := byIndex[idx]
		rules[pos] = LabelRule{
			Label:      *value.Label,
			Color:      value.Color,
			IncreaseIf: value.IncreaseIf,
			DecreaseIf: value.DecreaseIf,
			MustHave:   value.MustHave,
		}
	}
	return NewRuleTable(rules)
}

// MarshalJSON writes the table back in its persisted keyed form.
func (t *RuleTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]LabelRule, len(t.rules))
	for i, rule := range t.rules {
		if rule.IncreaseIf == nil {
			rule.IncreaseIf = []string{}
		}
		if rule.DecreaseIf == nil {
			rule.DecreaseIf = []string{}
		}
		if rule.MustHave == nil {
			rule.MustHave = []string{}
		}
		out[strconv.Itoa(i)] = rule
	}
	return json.Marshal(out)
}

// Len returns the number of labels.
func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Labels returns the label names in index order.
func (t *RuleTable) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.rules))
	for i, rule := range t.rules {
		out[i] = rule.Label
	}
	return out
}

// Rule looks up the rule for a label.
func (t *RuleTable) Rule(label string) (LabelRule, bool) {
	if t == nil {
		return LabelRule{}, false
	}
	idx, ok := t.byLabel[label]
	if !ok {
		return LabelRule{}, false
	}
	return t.rules[idx], true
}

// LabelAt resolves a ground-truth label index to its name.
func (t *RuleTable) LabelAt(index int) (string, error) {
	if t == nil || index < 0 || index >= len(t.rules) {
		return "", fmt.Errorf("%w: %d", ErrUnknownLabelIndex, index)
	}
	return t.rules[index].Label, nil
}

// Adjust applies the per-label rules to one paragraph's raw scores.
// Labels without a rule pass through unchanged. The input is not modified.
func (t *RuleTable) Adjust(text string, raw []RawScore) []RawScore {
	out, _ := t.adjust(text, raw)
	return out
}

func (t *RuleTable) adjust(text string, raw []RawScore) ([]RawScore, []effect) {
	out := make([]RawScore, len(raw))
	effects := make([]effect, len(raw))
	folded := foldText(text)
	for i, rs := range raw {
		out[i] = rs
		if t == nil {
			continue
		}
		idx, ok := t.byLabel[rs.Label]
		if !ok {
			continue
		}
		out[i].Score, effects[i] = t.compiled[idx].apply(folded, rs.Score)
	}
	return out, effects
}

// apply runs the gate first; a failed gate zeroes the score and skips the
// multipliers. Boost and penalty are independent and compound when both match.
func (r compiledRule) apply(folded string, score float64) (float64, effect) {
	if len(r.mustHave) > 0 && !containsAny(folded, r.mustHave) {
		return 0, effectGated
	}
	var eff effect
	if containsAny(folded, r.increase) {
		score *= boostFactor
		eff |= effectBoosted
	}
	if containsAny(folded, r.decrease) {
		score *= penaltyFactor
		eff |= effectPenalized
	}
	return score, eff
}

func containsAny(text string, triggers []string) bool {
	for _, trigger := range triggers {
		if strings.Contains(text, trigger) {
			return true
		}
	}
	return false
}
