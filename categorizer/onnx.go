package categorizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// OrtClassifier runs a fine-tuned sequence-classification model exported to
// ONNX. Output logit i belongs to rule-table label i.
type OrtClassifier struct {
	mu        sync.Mutex
	tk        *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	labels    []string
	maxSeqLen int
	modelID   string
}

// NewOrtClassifier loads the tokenizer and model and prepares a session.
func NewOrtClassifier(cfg ClassifierConfig, labels []string) (*OrtClassifier, error) {
	if len(labels) == 0 {
		return nil, errors.New("classifier needs at least one label")
	}
	modelID, err := ortModelID(cfg)
	if err != nil {
		return nil, err
	}
	if err := initRuntime(cfg.OrtDLL); err != nil {
		return nil, err
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", cfg.TokenizerPath, err)
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask"}, []string{"logits"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	return &OrtClassifier{
		tk:        tk,
		session:   session,
		labels:    append([]string(nil), labels...),
		maxSeqLen: cfg.MaxSeqLen,
		modelID:   modelID,
	}, nil
}

// ortModelID names the model for cache keys. The model file's fingerprint is
// always appended, so retraining into the same path invalidates cached scores.
func ortModelID(cfg ClassifierConfig) (string, error) {
	id := cfg.ModelID
	if id == "" {
		id = filepath.Base(filepath.Dir(cfg.ModelPath)) + "/" + filepath.Base(cfg.ModelPath)
	}
	fp, err := fileFingerprint(cfg.ModelPath)
	if err != nil {
		return "", fmt.Errorf("load model: %w", err)
	}
	return id + "@" + fp, nil
}

func initRuntime(dll string) error {
	ortInitOnce.Do(func() {
		if dll != "" {
			ort.SetSharedLibraryPath(dll)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return ortInitErr
}

// Close releases the ORT session.
func (o *OrtClassifier) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	return err
}

// ModelID returns the identifier used for cache keys.
func (o *OrtClassifier) ModelID() string {
	return o.modelID
}

// Classify returns softmax probabilities for every label, in table order.
func (o *OrtClassifier) Classify(ctx context.Context, text string) ([]RawScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, ErrClassifierClosed
	}

	enc, err := o.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids, mask := truncateTokens(enc.Ids, enc.AttentionMask, o.maxSeqLen)
	seqLen := int64(len(ids))

	idsTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	logitsTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(o.labels))))
	if err != nil {
		return nil, fmt.Errorf("logits tensor: %w", err)
	}
	defer logitsTensor.Destroy()

	if err := o.session.Run([]ort.Value{idsTensor, maskTensor}, []ort.Value{logitsTensor}); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	probs := softmax(logitsTensor.GetData())
	out := make([]RawScore, len(o.labels))
	for i, label := range o.labels {
		out[i] = RawScore{Label: label, Score: probs[i]}
	}
	return out, nil
}

// truncateTokens caps the sequence at maxLen, keeping the final special token.
func truncateTokens(ids, mask []int, maxLen int) ([]int64, []int64) {
	n := len(ids)
	truncated := maxLen > 1 && n > maxLen
	if truncated {
		n = maxLen
	}
	outIDs := make([]int64, n)
	outMask := make([]int64, n)
	for i := 0; i < n; i++ {
		outIDs[i] = int64(ids[i])
		outMask[i] = 1
		if i < len(mask) {
			outMask[i] = int64(mask[i])
		}
	}
	if truncated {
		outIDs[n-1] = int64(ids[len(ids)-1])
	}
	return outIDs, outMask
}

func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	hi := math.Inf(-1)
	for _, v := range logits {
		hi = math.Max(hi, float64(v))
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
