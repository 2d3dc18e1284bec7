package categorizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "train_labels.json", cfg.RulesPath)
	assert.Equal(t, "train_input.json", cfg.GroundTruthPath)
	assert.Equal(t, "infer_input.md", cfg.InferInputPath)
	assert.Equal(t, "infer_output.json", cfg.PredictionsPath)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, ClassifierONNX, cfg.Classifier.Kind)
	assert.Equal(t, 512, cfg.Classifier.MaxSeqLen)
	assert.False(t, cfg.RawScores)
	assert.False(t, cfg.TopLabelOnly)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rulesPath": "labels.json", "workers": 2}`), 0o644))

	t.Setenv("LABELTUNE_WORKERS", "4")
	t.Setenv("LABELTUNE_TOP_LABEL_ONLY", "true")
	t.Setenv("LABELTUNE_CLASSIFIER_KIND", "fixture")
	t.Setenv("LABELTUNE_CLASSIFIER_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("LABELTUNE_TRAINER_COMMAND", "python train.py --epochs 3")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "labels.json", cfg.RulesPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.TopLabelOnly)
	assert.Equal(t, ClassifierFixture, cfg.Classifier.Kind)
	assert.Equal(t, []string{"python", "train.py", "--epochs", "3"}, cfg.Trainer.Command)
	assert.DirExists(t, filepath.Join(dir, "cache"))
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Config{RulesPath: "r.json", RawScores: true, Trainer: TrainerConfig{Command: []string{"make", "train"}}}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "r.json", loaded.RulesPath)
	assert.True(t, loaded.RawScores)
	assert.Equal(t, []string{"make", "train"}, loaded.Trainer.Command)
	assert.NoFileExists(t, path+".tmp")
}

func TestConfigClone(t *testing.T) {
	cfg := Config{Trainer: TrainerConfig{Command: []string{"a"}}}
	clone := cfg.Clone()
	clone.Trainer.Command[0] = "b"
	assert.Equal(t, "a", cfg.Trainer.Command[0])
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "ABC 1", NormalizeLabel("  ＡＢＣ　1\u0007 "))
}
