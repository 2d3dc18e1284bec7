package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yashubustudio/labeltune/categorizer"
)

var inferFlags struct {
	raw         bool
	topOnly     bool
	input       string
	output      string
	rules       string
	textColumn  string
	workers     int
	metricsFile string
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Classify paragraphs and write rule-adjusted predictions",
	RunE:  runInfer,
}

func init() {
	f := inferCmd.Flags()
	f.BoolVarP(&inferFlags.raw, "raw", "s", false, "Keep adjusted scores as-is instead of normalizing to 0-100 (overrides config; --raw=false forces normalization)")
	f.BoolVarP(&inferFlags.topOnly, "top-only", "l", false, "Write only the top label per paragraph (overrides config)")
	f.StringVar(&inferFlags.input, "input", "", "Paragraph file (.md/.txt split on blank lines, or .csv/.tsv)")
	f.StringVar(&inferFlags.output, "output", "", "Prediction JSON to write")
	f.StringVar(&inferFlags.rules, "rules", "", "Label rule table JSON")
	f.StringVar(&inferFlags.textColumn, "text-column", "", "Column name or #index holding paragraphs in CSV/TSV input")
	f.IntVar(&inferFlags.workers, "workers", 0, "Paragraphs classified in parallel")
	f.StringVar(&inferFlags.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format")
}

func runInfer(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	cfg.RulesPath = firstNonEmpty(inferFlags.rules, cfg.RulesPath)
	cfg.InferInputPath = firstNonEmpty(inferFlags.input, cfg.InferInputPath)
	cfg.PredictionsPath = firstNonEmpty(inferFlags.output, cfg.PredictionsPath)
	if cmd.Flags().Changed("raw") {
		cfg.RawScores = inferFlags.raw
	}
	if cmd.Flags().Changed("top-only") {
		cfg.TopLabelOnly = inferFlags.topOnly
	}
	if inferFlags.workers > 0 {
		cfg.Workers = inferFlags.workers
	}

	table, err := categorizer.LoadRuleTable(cfg.RulesPath)
	if err != nil {
		return err
	}
	paragraphs, err := categorizer.ReadParagraphs(cfg.InferInputPath, inferFlags.textColumn)
	if err != nil {
		return err
	}
	logger.Info().
		Int("labels", table.Len()).
		Int("paragraphs", len(paragraphs)).
		Str("input", cfg.InferInputPath).
		Msg("Inputs loaded")

	tel := categorizer.NewTelemetry()
	classifier, err := categorizer.NewClassifier(cfg.Classifier, table, tel)
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}
	service, err := categorizer.NewService(classifier, table, cfg, tel, logger)
	if err != nil {
		return errors.Join(fmt.Errorf("init service: %w", err), classifier.Close())
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn().Err(err).Msg("Classifier close failed")
		}
	}()

	preds, err := service.Infer(cmd.Context(), paragraphs)
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}
	if err := categorizer.WritePredictions(cfg.PredictionsPath, preds); err != nil {
		return err
	}
	if inferFlags.metricsFile != "" {
		if err := tel.WriteTextfile(inferFlags.metricsFile); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Classification complete. Results written to %s\n", cfg.PredictionsPath)
	return nil
}
