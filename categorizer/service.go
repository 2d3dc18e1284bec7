package categorizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Service runs the classifier over paragraphs and post-processes its scores
// with the rule table.
type Service struct {
	classifier Classifier
	table      *RuleTable

	cfgMu sync.RWMutex
	cfg   Config

	tel    *Telemetry
	logger *zerolog.Logger
}

// NewService constructs a service. tel and logger may be nil.
func NewService(classifier Classifier, table *RuleTable, cfg Config, tel *Telemetry, logger *zerolog.Logger) (*Service, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if table == nil {
		return nil, errors.New("rule table is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg.ApplyDefaults()
	return &Service{
		classifier: classifier,
		table:      table,
		cfg:        cfg,
		tel:        tel,
		logger:     logger,
	}, nil
}

// Close releases classifier resources.
func (s *Service) Close() error {
	return s.classifier.Close()
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig replaces the configuration.
func (s *Service) UpdateConfig(cfg Config) {
	cfg.ApplyDefaults()
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

// Table returns the rule table the service adjusts with.
func (s *Service) Table() *RuleTable {
	return s.table
}

// Infer classifies and post-processes every paragraph. The result order
// always matches the input order, also when Workers > 1.
func (s *Service) Infer(ctx context.Context, paragraphs []string) ([]Prediction, error) {
	cfg := s.Config()
	opts := ProcessOptions{Raw: cfg.RawScores, TopLabelOnly: cfg.TopLabelOnly}
	start := time.Now()

	preds := make([]Prediction, len(paragraphs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, text := range paragraphs {
		g.Go(func() error {
			pred, err := s.inferOne(gCtx, text, opts)
			if err != nil {
				return fmt.Errorf("paragraph %d: %w", i+1, err)
			}
			preds[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("paragraphs", len(paragraphs)).
		Int("workers", cfg.Workers).
		Bool("normalized", !opts.Raw).
		Bool("top_label_only", opts.TopLabelOnly).
		Dur("elapsed", time.Since(start)).
		Msg("Inference complete")
	return preds, nil
}

// InferOne classifies and post-processes a single paragraph.
func (s *Service) InferOne(ctx context.Context, text string) (Prediction, error) {
	cfg := s.Config()
	return s.inferOne(ctx, text, ProcessOptions{Raw: cfg.RawScores, TopLabelOnly: cfg.TopLabelOnly})
}

func (s *Service) inferOne(ctx context.Context, text string, opts ProcessOptions) (Prediction, error) {
	raw, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return Prediction{}, fmt.Errorf("classify: %w", err)
	}
	if len(raw) != s.table.Len() {
		s.logger.Warn().
			Int("scores", len(raw)).
			Int("labels", s.table.Len()).
			Str("text", truncateText(text, 40)).
			Msg("Classifier score set does not cover the rule table")
	}
	pred, effects, err := s.table.process(text, raw, opts)
	if err != nil {
		return Prediction{}, err
	}
	s.tel.observeParagraph(raw, effects)
	s.logger.Debug().
		Str("text", truncateText(text, 40)).
		Str("top", pred.Top()).
		Msg("Paragraph classified")
	return pred, nil
}
