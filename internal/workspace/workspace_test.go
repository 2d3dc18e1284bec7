package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/labeltune/categorizer"
)

const testRules = `{"0": {"label": "sports", "increaseIf": [], "decreaseIf": [], "mustHave": []},
"1": {"label": "politics", "increaseIf": [], "decreaseIf": [], "mustHave": []}}`

func testConfig(dir string) categorizer.Config {
	cfg := categorizer.Config{
		RulesPath:       filepath.Join(dir, "train_labels.json"),
		GroundTruthPath: filepath.Join(dir, "train_input.json"),
		InferInputPath:  filepath.Join(dir, "infer_input.md"),
		PredictionsPath: filepath.Join(dir, "infer_output.json"),
		ReportPath:      filepath.Join(dir, "validation_output.txt"),
	}
	cfg.Classifier.ModelPath = filepath.Join(dir, "trained_model_1", "model.onnx")
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStatusReflectsFilesystem(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	ws := New(cfg)

	for _, a := range ws.Status() {
		assert.False(t, a.Exists, a.Name)
	}

	writeFile(t, cfg.RulesPath, testRules)
	a, ok := ws.Artifact(ArtifactRules)
	require.True(t, ok)
	assert.True(t, a.Exists)
	assert.Equal(t, int64(len(testRules)), a.Size)

	_, ok = ws.Artifact("nope")
	assert.False(t, ok)
}

func TestReady(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	ws := New(cfg)

	err := ws.Ready(StageValidate)
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), cfg.PredictionsPath)

	writeFile(t, cfg.RulesPath, testRules)
	writeFile(t, cfg.GroundTruthPath, `[]`)
	assert.NoError(t, ws.Ready(StagePrepare))
	assert.NoError(t, ws.Ready(StageTrain))
	assert.ErrorIs(t, ws.Ready(StageInfer), ErrNotReady)

	writeFile(t, cfg.PredictionsPath, `[]`)
	assert.NoError(t, ws.Ready(StageValidate))

	assert.Error(t, ws.Ready(Stage("deploy")))
}

func TestReadyInferWithFixtureNeedsNoModel(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeFile(t, cfg.RulesPath, testRules)
	writeFile(t, cfg.InferInputPath, "paragraph")
	assert.ErrorIs(t, New(cfg).Ready(StageInfer), ErrNotReady)

	cfg.Classifier.Kind = categorizer.ClassifierFixture
	assert.NoError(t, New(cfg).Ready(StageInfer))
}

func TestPrepare(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeFile(t, cfg.RulesPath, testRules)
	writeFile(t, cfg.GroundTruthPath, `[{"text": "first paragraph", "label": 0}, {"text": "second\nparagraph", "label": 1}]`)

	n, err := New(cfg).Prepare()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	paragraphs, err := categorizer.ReadParagraphs(cfg.InferInputPath, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"first paragraph", "second\nparagraph"}, paragraphs)
}

func TestPrepareNotReady(t *testing.T) {
	_, err := New(testConfig(t.TempDir())).Prepare()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	ws := New(cfg)
	src := filepath.Join(t.TempDir(), "labels.json")
	writeFile(t, src, testRules)

	require.NoError(t, ws.Import(ArtifactRules, src, false))
	data, err := os.ReadFile(cfg.RulesPath)
	require.NoError(t, err)
	assert.Equal(t, testRules, string(data))

	writeFile(t, src, `{}`)
	assert.ErrorIs(t, ws.Import(ArtifactRules, src, false), os.ErrExist)
	require.NoError(t, ws.Import(ArtifactRules, src, true))
	data, err = os.ReadFile(cfg.RulesPath)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	assert.Error(t, ws.Import("nope", src, true))
	assert.Error(t, ws.Import(ArtifactGroundTruth, filepath.Join(dir, "missing.json"), true))
}

func TestBackupModel(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	ws := New(cfg)

	backup, err := ws.BackupModel()
	require.NoError(t, err)
	assert.Empty(t, backup)

	writeFile(t, cfg.Classifier.ModelPath, "v1")
	backup, err = ws.BackupModel()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trained_model_1_backup_1"), backup)
	assert.FileExists(t, filepath.Join(backup, "model.onnx"))
	assert.NoDirExists(t, ws.ModelDir())

	writeFile(t, cfg.Classifier.ModelPath, "v2")
	backup, err = ws.BackupModel()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trained_model_1_backup_2"), backup)
}
