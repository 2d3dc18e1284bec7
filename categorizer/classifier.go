package categorizer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Classifier is the label-probability oracle: for a paragraph it returns one
// score per known label.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]RawScore, error)
	Close() error
	ModelID() string
}

// NewClassifier builds the classifier selected by cfg, wrapped in a score cache.
func NewClassifier(cfg ClassifierConfig, table *RuleTable, tel *Telemetry) (Classifier, error) {
	var (
		inner Classifier
		err   error
	)
	switch cfg.Kind {
	case ClassifierFixture:
		inner, err = LoadFixtureClassifier(cfg.FixturePath)
	case ClassifierONNX, "":
		inner, err = NewOrtClassifier(cfg, table.Labels())
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return NewCachedClassifier(inner, cfg.CacheDir, tel), nil
}

type fixtureRecord struct {
	Text   string     `json:"text"`
	Scores []RawScore `json:"scores"`
}

// FixtureClassifier replays raw scores recorded earlier, keyed by paragraph text.
type FixtureClassifier struct {
	id     string
	scores map[string][]RawScore
}

// NewFixtureClassifier serves the given scores. The map is copied.
func NewFixtureClassifier(id string, scores map[string][]RawScore) *FixtureClassifier {
	f := &FixtureClassifier{id: id, scores: make(map[string][]RawScore, len(scores))}
	for text, s := range scores {
		f.scores[text] = cloneScores(s)
	}
	return f
}

// LoadFixtureClassifier reads [{text, scores:[{label, score}]}] from path.
func LoadFixtureClassifier(path string) (*FixtureClassifier, error) {
	var records []fixtureRecord
	if err := readJSON(path, &records); err != nil {
		return nil, fmt.Errorf("load fixture classifier: %w", err)
	}
	fp, err := fileFingerprint(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture classifier: %w", err)
	}
	scores := make(map[string][]RawScore, len(records))
	for _, rec := range records {
		scores[rec.Text] = rec.Scores
	}
	return NewFixtureClassifier("fixture:"+filepath.Base(path)+"@"+fp, scores), nil
}

// fileFingerprint identifies one version of a file by size and modification time.
func fileFingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()), nil
}

// Classify returns the recorded scores for text.
func (f *FixtureClassifier) Classify(_ context.Context, text string) ([]RawScore, error) {
	s, ok := f.scores[text]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownText, truncateText(text, previewLen))
	}
	return cloneScores(s), nil
}

// Close is a no-op.
func (f *FixtureClassifier) Close() error { return nil }

// ModelID identifies the fixture for cache keys.
func (f *FixtureClassifier) ModelID() string { return f.id }

// CachedClassifier memoizes another classifier in memory and, when dir is
// set, on disk as one JSON file per paragraph.
type CachedClassifier struct {
	inner Classifier
	dir   string
	tel   *Telemetry

	mu  sync.RWMutex
	mem map[string][]RawScore
}

// NewCachedClassifier wraps inner.
func NewCachedClassifier(inner Classifier, dir string, tel *Telemetry) *CachedClassifier {
	return &CachedClassifier{inner: inner, dir: dir, tel: tel, mem: make(map[string][]RawScore)}
}

// Classify serves from memory, then disk, then the wrapped classifier.
func (c *CachedClassifier) Classify(ctx context.Context, text string) ([]RawScore, error) {
	key := c.cacheKey(text)
	if s := c.getFromCache(key); s != nil {
		c.tel.observeCacheHit()
		return s, nil
	}
	if s, err := c.loadFromDisk(key); err == nil {
		c.storeInMemory(key, s)
		c.tel.observeCacheHit()
		return cloneScores(s), nil
	}
	s, err := c.inner.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	c.storeInMemory(key, s)
	_ = c.saveToDisk(key, s)
	return cloneScores(s), nil
}

// Close releases the wrapped classifier.
func (c *CachedClassifier) Close() error {
	c.mu.Lock()
	c.mem = make(map[string][]RawScore)
	c.mu.Unlock()
	return c.inner.Close()
}

// ModelID returns the wrapped classifier's identifier.
func (c *CachedClassifier) ModelID() string { return c.inner.ModelID() }

func (c *CachedClassifier) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.inner.ModelID())
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedClassifier) getFromCache(key string) []RawScore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.mem[key]; ok {
		return cloneScores(s)
	}
	return nil
}

func (c *CachedClassifier) storeInMemory(key string, s []RawScore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = cloneScores(s)
}

func (c *CachedClassifier) loadFromDisk(key string) ([]RawScore, error) {
	if c.dir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(c.dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s []RawScore
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cache file %s: %w", path, err)
	}
	if len(s) == 0 {
		return nil, errors.New("empty cache entry: " + path)
	}
	return s, nil
}

func (c *CachedClassifier) saveToDisk(key string, s []RawScore) error {
	if c.dir == "" {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(c.dir, key+".json"), data)
}

func cloneScores(s []RawScore) []RawScore {
	if s == nil {
		return nil
	}
	out := make([]RawScore, len(s))
	copy(out, s)
	return out
}
