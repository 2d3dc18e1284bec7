// Package workspace tracks the files exchanged between the training,
// inference and validation stages and runs the external training command.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yashubustudio/labeltune/categorizer"
)

// Stage is one step of the fine-tune / infer / validate workflow.
type Stage string

const (
	StageTrain    Stage = "train"
	StagePrepare  Stage = "prepare"
	StageInfer    Stage = "infer"
	StageValidate Stage = "validate"
)

// Artifact names.
const (
	ArtifactRules       = "rules"
	ArtifactGroundTruth = "ground-truth"
	ArtifactInferInput  = "infer-input"
	ArtifactModel       = "model"
	ArtifactPredictions = "predictions"
	ArtifactReport      = "report"
)

// ErrNotReady indicates a stage's input artifacts are missing.
var ErrNotReady = errors.New("stage inputs missing")

// Artifact describes one workflow file at the moment Status was called.
type Artifact struct {
	Name    string
	Path    string
	Exists  bool
	Size    int64
	ModTime time.Time
}

// Workspace resolves artifact paths from the configuration. It holds no
// cached state: every query looks at the filesystem.
type Workspace struct {
	cfg categorizer.Config
}

// New returns a workspace for cfg.
func New(cfg categorizer.Config) *Workspace {
	cfg.ApplyDefaults()
	return &Workspace{cfg: cfg}
}

// ModelDir is the directory holding the trained model.
func (w *Workspace) ModelDir() string {
	return filepath.Dir(w.cfg.Classifier.ModelPath)
}

func (w *Workspace) paths() []Artifact {
	return []Artifact{
		{Name: ArtifactRules, Path: w.cfg.RulesPath},
		{Name: ArtifactGroundTruth, Path: w.cfg.GroundTruthPath},
		{Name: ArtifactInferInput, Path: w.cfg.InferInputPath},
		{Name: ArtifactModel, Path: w.cfg.Classifier.ModelPath},
		{Name: ArtifactPredictions, Path: w.cfg.PredictionsPath},
		{Name: ArtifactReport, Path: w.cfg.ReportPath},
	}
}

// Status reports every artifact's presence.
func (w *Workspace) Status() []Artifact {
	out := w.paths()
	for i := range out {
		info, err := os.Stat(out[i].Path)
		if err != nil {
			continue
		}
		out[i].Exists = true
		out[i].Size = info.Size()
		out[i].ModTime = info.ModTime()
	}
	return out
}

// Artifact returns the status of a single artifact by name.
func (w *Workspace) Artifact(name string) (Artifact, bool) {
	for _, a := range w.Status() {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

var stageInputs = map[Stage][]string{
	StageTrain:    {ArtifactRules, ArtifactGroundTruth},
	StagePrepare:  {ArtifactRules, ArtifactGroundTruth},
	StageInfer:    {ArtifactRules, ArtifactInferInput, ArtifactModel},
	StageValidate: {ArtifactRules, ArtifactGroundTruth, ArtifactPredictions},
}

// Ready returns nil when every input of the stage exists.
func (w *Workspace) Ready(stage Stage) error {
	needs, ok := stageInputs[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	status := w.Status()
	var missing []string
	for _, name := range needs {
		if name == ArtifactModel && w.cfg.Classifier.Kind == categorizer.ClassifierFixture {
			continue
		}
		for _, a := range status {
			if a.Name == name && !a.Exists {
				missing = append(missing, a.Path)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %s: %s", ErrNotReady, stage, strings.Join(missing, ", "))
	}
	return nil
}

// Prepare writes the inference input from the ground-truth corpus so the
// trained model can be checked against its own training data.
func (w *Workspace) Prepare() (int, error) {
	if err := w.Ready(StagePrepare); err != nil {
		return 0, err
	}
	entries, err := categorizer.LoadGroundTruth(w.cfg.GroundTruthPath)
	if err != nil {
		return 0, err
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	if err := categorizer.WriteParagraphs(w.cfg.InferInputPath, texts); err != nil {
		return 0, fmt.Errorf("write inference input: %w", err)
	}
	return len(texts), nil
}

// Import copies src over the named artifact. An existing file is replaced
// only when overwrite is set.
func (w *Workspace) Import(name, src string, overwrite bool) error {
	dst, ok := w.Artifact(name)
	if !ok {
		return fmt.Errorf("unknown artifact %q", name)
	}
	if dst.Exists && !overwrite {
		return fmt.Errorf("%s already exists: %w", dst.Path, os.ErrExist)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst.Path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dst.Path, err)
	}
	tmp := dst.Path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst.Path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// BackupModel moves an existing model directory aside as
// <dir>_backup_<n> and returns the new name, or "" if there was nothing to move.
func (w *Workspace) BackupModel() (string, error) {
	dir := w.ModelDir()
	if dir == "." || dir == "" {
		return "", nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", dir, err)
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_backup_%d", dir, n)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			if err := os.Rename(dir, candidate); err != nil {
				return "", fmt.Errorf("back up %s: %w", dir, err)
			}
			return candidate, nil
		}
	}
}
