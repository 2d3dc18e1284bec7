package categorizer

import "encoding/json"

// ClassifierKind selects which label-probability oracle produces raw scores.
type ClassifierKind string

const (
	// ClassifierONNX runs a fine-tuned sequence classifier exported to ONNX.
	ClassifierONNX ClassifierKind = "onnx"
	// ClassifierFixture replays raw scores recorded in a JSON file.
	ClassifierFixture ClassifierKind = "fixture"
)

// LabelRule holds the lexical triggers used to adjust one label's score.
type LabelRule struct {
	Label      string   `json:"label"`
	Color      string   `json:"color,omitempty"`
	IncreaseIf []string `json:"increaseIf"`
	DecreaseIf []string `json:"decreaseIf"`
	MustHave   []string `json:"mustHave"`
}

// RawScore is one (label, score) pair. The same shape carries adjusted and
// normalized scores once the rules and normalization have been applied.
type RawScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Prediction is the final artifact for one paragraph. Exactly one of
// TopLabel or Ranked is set.
type Prediction struct {
	Text     string
	TopLabel string
	Ranked   []RawScore
}

// GroundTruthEntry is one labeled paragraph of the training corpus.
type GroundTruthEntry struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
}

// ClassifierConfig wraps the configuration for the label-probability oracle and its cache.
type ClassifierConfig struct {
	Kind          ClassifierKind `json:"kind" env:"KIND"`
	OrtDLL        string         `json:"ortDll" env:"ORT_DLL"`
	ModelPath     string         `json:"modelPath" env:"MODEL_PATH"`
	TokenizerPath string         `json:"tokenizerPath" env:"TOKENIZER_PATH"`
	MaxSeqLen     int            `json:"maxSeqLen" env:"MAX_SEQ_LEN"`
	CacheDir      string         `json:"cacheDir" env:"CACHE_DIR"`
	ModelID       string         `json:"modelId" env:"MODEL_ID"`
	FixturePath   string         `json:"fixturePath" env:"FIXTURE_PATH"`
}

// TrainerConfig describes the external command that fine-tunes the model.
type TrainerConfig struct {
	Command []string `json:"command" env:"COMMAND" envSeparator:" "`
	Dir     string   `json:"dir" env:"DIR"`
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	RulesPath       string           `json:"rulesPath" env:"RULES_PATH"`
	GroundTruthPath string           `json:"groundTruthPath" env:"GROUND_TRUTH_PATH"`
	InferInputPath  string           `json:"inferInputPath" env:"INFER_INPUT_PATH"`
	PredictionsPath string           `json:"predictionsPath" env:"PREDICTIONS_PATH"`
	ReportPath      string           `json:"reportPath" env:"REPORT_PATH"`
	RawScores       bool             `json:"rawScores" env:"RAW_SCORES"`
	TopLabelOnly    bool             `json:"topLabelOnly" env:"TOP_LABEL_ONLY"`
	Workers         int              `json:"workers" env:"WORKERS"`
	LogLevel        string           `json:"logLevel" env:"LOG_LEVEL"`
	Classifier      ClassifierConfig `json:"classifier" envPrefix:"CLASSIFIER_"`
	Trainer         TrainerConfig    `json:"trainer" envPrefix:"TRAINER_"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.RulesPath == "" {
		c.RulesPath = "train_labels.json"
	}
	if c.GroundTruthPath == "" {
		c.GroundTruthPath = "train_input.json"
	}
	if c.InferInputPath == "" {
		c.InferInputPath = "infer_input.md"
	}
	if c.PredictionsPath == "" {
		c.PredictionsPath = "infer_output.json"
	}
	if c.ReportPath == "" {
		c.ReportPath = "validation_output.txt"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Classifier.Kind == "" {
		c.Classifier.Kind = ClassifierONNX
	}
	if c.Classifier.MaxSeqLen == 0 {
		c.Classifier.MaxSeqLen = 512
	}
	if c.Classifier.ModelPath == "" {
		c.Classifier.ModelPath = "trained_model_1/model.onnx"
	}
	if c.Classifier.TokenizerPath == "" {
		c.Classifier.TokenizerPath = "trained_model_1/tokenizer.json"
	}
}
