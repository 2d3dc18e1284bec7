package categorizer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const paragraphSeparator = "\n\n"

// textColumnCandidates are header names auto-detected as the paragraph column of CSV/TSV input.
var textColumnCandidates = []string{"text", "paragraph", "content", "body", "本文"}

type predictionJSON struct {
	Text    string     `json:"text"`
	Label   *string    `json:"label,omitempty"`
	Results []RawScore `json:"results,omitempty"`
}

// MarshalJSON writes {text, label} in top-label mode and {text, results} otherwise.
func (p Prediction) MarshalJSON() ([]byte, error) {
	out := predictionJSON{Text: p.Text}
	if p.Ranked != nil {
		out.Results = p.Ranked
	} else {
		label := p.TopLabel
		out.Label = &label
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts either shape and rejects entries carrying both or neither.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var in struct {
		Text    *string     `json:"text"`
		Label   *string     `json:"label"`
		Results *[]RawScore `json:"results"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Text == nil {
		return fmt.Errorf("%w: missing text", ErrInvalidPrediction)
	}
	switch {
	case in.Label != nil && in.Results != nil:
		return fmt.Errorf("%w: both label and results present", ErrInvalidPrediction)
	case in.Results != nil:
		if len(*in.Results) == 0 {
			return fmt.Errorf("%w: empty results for %q", ErrInvalidPrediction, truncateText(*in.Text, previewLen))
		}
		*p = Prediction{Text: *in.Text, Ranked: *in.Results}
	case in.Label != nil:
		*p = Prediction{Text: *in.Text, TopLabel: *in.Label}
	default:
		return fmt.Errorf("%w: neither label nor results for %q", ErrInvalidPrediction, truncateText(*in.Text, previewLen))
	}
	return nil
}

// UnmarshalJSON requires both text and label and rejects unknown fields, so a
// missing label cannot silently become index 0.
func (e *GroundTruthEntry) UnmarshalJSON(data []byte) error {
	var in struct {
		Text  *string `json:"text"`
		Label *int    `json:"label"`
	}
	if err := decodeStrict(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGroundTruth, err)
	}
	if in.Text == nil {
		return fmt.Errorf("%w: missing text", ErrInvalidGroundTruth)
	}
	if in.Label == nil {
		return fmt.Errorf("%w: missing label for %q", ErrInvalidGroundTruth, truncateText(*in.Text, previewLen))
	}
	*e = GroundTruthEntry{Text: *in.Text, Label: *in.Label}
	return nil
}

// Top returns the highest-ranked label of the prediction.
func (p Prediction) Top() string {
	if len(p.Ranked) > 0 {
		return p.Ranked[0].Label
	}
	return p.TopLabel
}

// Labels returns every label the prediction carries, in rank order.
func (p Prediction) Labels() []string {
	if p.Ranked == nil {
		return []string{p.TopLabel}
	}
	out := make([]string, len(p.Ranked))
	for i, r := range p.Ranked {
		out[i] = r.Label
	}
	return out
}

// LoadRuleTable reads and validates the label rule table.
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table %s: %w", path, err)
	}
	table, err := ParseRuleTable(data)
	if err != nil {
		return nil, fmt.Errorf("load rule table %s: %w", path, err)
	}
	return table, nil
}

// LoadGroundTruth reads the labeled corpus.
func LoadGroundTruth(path string) ([]GroundTruthEntry, error) {
	var entries []GroundTruthEntry
	if err := readJSON(path, &entries); err != nil {
		return nil, fmt.Errorf("load ground truth: %w", err)
	}
	return entries, nil
}

// LoadPredictions reads the adjustment stage's output.
func LoadPredictions(path string) ([]Prediction, error) {
	var preds []Prediction
	if err := readJSON(path, &preds); err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	return preds, nil
}

// WritePredictions persists predictions as indented JSON.
func WritePredictions(path string, preds []Prediction) error {
	if preds == nil {
		preds = []Prediction{}
	}
	data, err := json.MarshalIndent(preds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}
	return writeFileAtomic(path, data)
}

// ReadParagraphs reads the inference input. Markdown and text files are split
// on blank lines; CSV/TSV files contribute one paragraph per row from the text
// column (a header name, a 1-based "#n" index, or auto-detected).
func ReadParagraphs(path, textColumn string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readDelimitedParagraphs(path, ',', textColumn)
	case ".tsv":
		return readDelimitedParagraphs(path, '\t', textColumn)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read paragraphs %s: %w", path, err)
	}
	return SplitParagraphs(string(data)), nil
}

// SplitParagraphs splits on blank lines. CRLF line endings are read as LF.
// Whitespace-only chunks are dropped; the rest are kept verbatim so they match
// ground-truth texts exactly.
func SplitParagraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	parts := strings.Split(content, paragraphSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// WriteParagraphs writes texts joined by blank lines, the inverse of SplitParagraphs.
func WriteParagraphs(path string, texts []string) error {
	return writeFileAtomic(path, []byte(strings.Join(texts, paragraphSeparator)))
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// decodeStrict decodes a single JSON value and rejects fields the target does not declare.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func readDelimitedParagraphs(path string, comma rune, textColumn string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), errors.New("empty file"))
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	col, fromHeader, err := resolveTextColumn(header, textColumn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	start := 0
	if fromHeader {
		start = 1
	}
	out := make([]string, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		if value := cleanCell(row[col]); value != "" {
			out = append(out, value)
		}
	}
	return out, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func resolveTextColumn(header []string, explicit string) (int, bool, error) {
	if strings.TrimSpace(explicit) != "" {
		return matchExplicitColumn(header, explicit)
	}
	for i, col := range header {
		for _, cand := range textColumnCandidates {
			if strings.EqualFold(col, cand) {
				return i, true, nil
			}
		}
	}
	return 0, false, nil
}

func matchExplicitColumn(header []string, explicit string) (int, bool, error) {
	trimmed := strings.TrimSpace(explicit)
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, true, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, false, err
		}
		if idx >= len(header) {
			return -1, false, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, false, nil
	}
	return -1, false, fmt.Errorf("column %q not found", explicit)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}
