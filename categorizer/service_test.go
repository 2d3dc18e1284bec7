package categorizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg Config, scores map[string][]RawScore) (*Service, *Telemetry) {
	t.Helper()
	tel := NewTelemetry()
	logger := zerolog.Nop()
	classifier := NewCachedClassifier(NewFixtureClassifier("svc", scores), "", tel)
	svc, err := NewService(classifier, newTestTable(t), cfg, tel, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, tel
}

func TestServiceInferPreservesOrder(t *testing.T) {
	scores := make(map[string][]RawScore)
	var paragraphs []string
	for i := 0; i < 40; i++ {
		text := fmt.Sprintf("paragraph %d", i)
		paragraphs = append(paragraphs, text)
		scores[text] = []RawScore{{"sports", float64(i%3) / 10}, {"politics", 0.15}, {"spam", 0.05}}
	}
	svc, tel := newTestService(t, Config{Workers: 8}, scores)

	preds, err := svc.Infer(context.Background(), paragraphs)
	require.NoError(t, err)
	require.Len(t, preds, len(paragraphs))
	for i, p := range preds {
		assert.Equal(t, paragraphs[i], p.Text)
		require.Len(t, p.Ranked, 3)
	}
	assert.Equal(t, 40.0, metricValue(t, tel, "labeltune_paragraphs_processed_total", nil))
	assert.Equal(t, 40.0, metricValue(t, tel, "labeltune_rule_effects_total", map[string]string{"label": "spam", "effect": "gated"}))
}

func TestServiceInferTopLabelOnly(t *testing.T) {
	svc, _ := newTestService(t, Config{TopLabelOnly: true}, map[string][]RawScore{
		"vote in the election": {{"sports", 0.5}, {"politics", 0.45}, {"spam", 0.05}},
	})

	preds, err := svc.Infer(context.Background(), []string{"vote in the election"})
	require.NoError(t, err)
	assert.Equal(t, []Prediction{{Text: "vote in the election", TopLabel: "politics"}}, preds)
}

func TestServiceInferError(t *testing.T) {
	svc, _ := newTestService(t, Config{Workers: 2}, map[string][]RawScore{"known": {{"sports", 1}}})

	_, err := svc.Infer(context.Background(), []string{"known", "unknown"})
	require.ErrorIs(t, err, ErrUnknownText)
	assert.Contains(t, err.Error(), "paragraph 2")
}

func TestServiceUpdateConfig(t *testing.T) {
	svc, _ := newTestService(t, Config{}, map[string][]RawScore{"x": {{"sports", 0.2}, {"politics", 0.4}}})

	pred, err := svc.InferOne(context.Background(), "x")
	require.NoError(t, err)
	assert.InDelta(t, 100, pred.Ranked[0].Score, 1e-9)

	svc.UpdateConfig(Config{RawScores: true})
	pred, err = svc.InferOne(context.Background(), "x")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, pred.Ranked[0].Score, 1e-9)
	assert.Equal(t, 1, svc.Config().Workers)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, newTestTable(t), Config{}, nil, nil)
	assert.Error(t, err)
	_, err = NewService(NewFixtureClassifier("x", nil), nil, Config{}, nil, nil)
	assert.Error(t, err)
}

func TestTelemetryTextfile(t *testing.T) {
	tel := NewTelemetry()
	tel.ObserveReport(sampleReport(t))
	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, tel.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `labeltune_validation_correct_percent 50`)
	assert.Contains(t, string(data), `labeltune_validation_items{kind="matched"} 2`)

	var nilTel *Telemetry
	assert.NoError(t, nilTel.WriteTextfile(path))
}

// metricValue reads a counter or gauge sample from the telemetry registry.
func metricValue(t *testing.T, tel *Telemetry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := tel.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			pairs := m.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for _, lp := range pairs {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}
