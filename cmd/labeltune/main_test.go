package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/labeltune/categorizer"
)

var corpus = []string{
	"The match ended 2-1.",
	"The election results are in.",
	"Buy now while stocks last.",
}

// setupWorkspace writes a complete workflow directory and returns its config path.
func setupWorkspace(t *testing.T) (string, categorizer.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := categorizer.Config{
		RulesPath:       filepath.Join(dir, "train_labels.json"),
		GroundTruthPath: filepath.Join(dir, "train_input.json"),
		InferInputPath:  filepath.Join(dir, "infer_input.md"),
		PredictionsPath: filepath.Join(dir, "infer_output.json"),
		ReportPath:      filepath.Join(dir, "validation_output.txt"),
	}
	cfg.Classifier.Kind = categorizer.ClassifierFixture
	cfg.Classifier.FixturePath = filepath.Join(dir, "scores.json")

	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(cfg.RulesPath, `{
		"0": {"label": "sports", "increaseIf": ["match"], "decreaseIf": [], "mustHave": []},
		"1": {"label": "politics", "increaseIf": ["election"], "decreaseIf": [], "mustHave": []},
		"2": {"label": "spam", "increaseIf": [], "decreaseIf": [], "mustHave": ["buy now"]}
	}`)
	truth, err := json.Marshal([]categorizer.GroundTruthEntry{{Text: corpus[0], Label: 0}, {Text: corpus[1], Label: 1}, {Text: corpus[2], Label: 2}})
	require.NoError(t, err)
	write(cfg.GroundTruthPath, string(truth))
	require.NoError(t, categorizer.WriteParagraphs(cfg.InferInputPath, corpus))
	write(cfg.Classifier.FixturePath, `[
		{"text": "The match ended 2-1.", "scores": [{"label": "sports", "score": 0.6}, {"label": "politics", "score": 0.3}, {"label": "spam", "score": 0.1}]},
		{"text": "The election results are in.", "scores": [{"label": "sports", "score": 0.4}, {"label": "politics", "score": 0.35}, {"label": "spam", "score": 0.25}]},
		{"text": "Buy now while stocks last.", "scores": [{"label": "sports", "score": 0.5}, {"label": "politics", "score": 0.3}, {"label": "spam", "score": 0.2}]}
	]`)

	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, categorizer.SaveConfig(cfgPath, cfg))
	return cfgPath, cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInferThenValidate(t *testing.T) {
	cfgPath, cfg := setupWorkspace(t)
	dir := filepath.Dir(cfgPath)

	out, err := execute(t, "infer", "--config", cfgPath, "--log-level", "error", "--workers", "2", "--metrics-file", filepath.Join(dir, "infer.prom"))
	require.NoError(t, err)
	assert.Contains(t, out, "Classification complete")

	preds, err := categorizer.LoadPredictions(cfg.PredictionsPath)
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.Equal(t, "sports", preds[0].Top())
	assert.Equal(t, "politics", preds[1].Top())
	assert.Equal(t, "sports", preds[2].Top())
	assert.FileExists(t, filepath.Join(dir, "infer.prom"))

	reportPath := filepath.Join(dir, "report.json")
	out, err = execute(t, "validate", "--config", cfgPath, "--log-level", "error", "--format", "json", "--out", reportPath)
	require.NoError(t, err)

	var report categorizer.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.MatchedCount)
	assert.Equal(t, 1, report.MistakeCount)
	assert.Equal(t, []categorizer.Mistake{{Text: corpus[2], Predicted: "sports", Correct: "spam"}}, report.Mistakes)

	saved, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, out, string(saved))
}

func TestInferTopOnly(t *testing.T) {
	cfgPath, cfg := setupWorkspace(t)

	_, err := execute(t, "infer", "--config", cfgPath, "--log-level", "error", "--top-only")
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.PredictionsPath)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"text": "The match ended 2-1.", "label": "sports"},
		{"text": "The election results are in.", "label": "politics"},
		{"text": "Buy now while stocks last.", "label": "sports"}
	]`, string(data))
}

func TestInferFlagsOverrideConfig(t *testing.T) {
	cfgPath, cfg := setupWorkspace(t)
	cfg.RawScores = true
	cfg.TopLabelOnly = true
	require.NoError(t, categorizer.SaveConfig(cfgPath, cfg))

	_, err := execute(t, "infer", "--config", cfgPath, "--log-level", "error", "--top-only=false")
	require.NoError(t, err)
	preds, err := categorizer.LoadPredictions(cfg.PredictionsPath)
	require.NoError(t, err)
	require.NotNil(t, preds[0].Ranked)
	assert.InDelta(t, 0.78, preds[0].Ranked[0].Score, 1e-9)

	_, err = execute(t, "infer", "--config", cfgPath, "--log-level", "error", "--top-only=false", "--raw=false")
	require.NoError(t, err)
	preds, err = categorizer.LoadPredictions(cfg.PredictionsPath)
	require.NoError(t, err)
	assert.InDelta(t, 100, preds[0].Ranked[0].Score, 1e-9)

	_, err = execute(t, "infer", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	preds, err = categorizer.LoadPredictions(cfg.PredictionsPath)
	require.NoError(t, err)
	assert.Nil(t, preds[0].Ranked)
	assert.Equal(t, "sports", preds[0].TopLabel)
}

func TestValidateTextReport(t *testing.T) {
	cfgPath, _ := setupWorkspace(t)
	_, err := execute(t, "infer", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	out, err := execute(t, "validate", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Prediction Accuracy:\nCorrect: 66.67%\nIncorrect: 33.33%\n")
	assert.Contains(t, out, "Total matching texts: 3\n")
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := setupWorkspace(t)
	_, err := execute(t, "validate", "--config", cfgPath, "--format", "xml")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	cfgPath, _ := setupWorkspace(t)
	out, err := execute(t, "status", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "ARTIFACT")
	assert.Contains(t, out, "predictions")
	assert.Contains(t, out, "not found")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "loud")
	assert.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty())
}
