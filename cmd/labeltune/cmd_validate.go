package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yashubustudio/labeltune/categorizer"
)

var validateFlags struct {
	predictions string
	groundTruth string
	rules       string
	format      string
	out         string
	metricsFile string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare predictions against ground truth and print metrics",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.predictions, "predictions", "", "Prediction JSON written by infer")
	f.StringVar(&validateFlags.groundTruth, "ground-truth", "", "Labeled corpus JSON")
	f.StringVar(&validateFlags.rules, "rules", "", "Label rule table JSON")
	f.StringVarP(&validateFlags.format, "format", "f", "text", "Report format: text, json or yaml")
	f.StringVarP(&validateFlags.out, "out", "o", "", "Also save the report to this file")
	f.StringVar(&validateFlags.metricsFile, "metrics-file", "", "Write report metrics in Prometheus text format")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	format, err := categorizer.ParseReportFormat(validateFlags.format)
	if err != nil {
		return err
	}
	rulesPath := firstNonEmpty(validateFlags.rules, cfg.RulesPath)
	truthPath := firstNonEmpty(validateFlags.groundTruth, cfg.GroundTruthPath)
	predsPath := firstNonEmpty(validateFlags.predictions, cfg.PredictionsPath)

	table, err := categorizer.LoadRuleTable(rulesPath)
	if err != nil {
		return err
	}
	truth, err := categorizer.LoadGroundTruth(truthPath)
	if err != nil {
		return err
	}
	preds, err := categorizer.LoadPredictions(predsPath)
	if err != nil {
		return err
	}

	report, err := categorizer.Validate(preds, truth, table)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	logger.Info().
		Int("matched", report.MatchedCount).
		Int("mistakes", report.MistakeCount).
		Float64("correct_percent", report.CorrectPercentage).
		Msg("Validation complete")

	var buf bytes.Buffer
	if err := report.Encode(&buf, format); err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return err
	}
	if validateFlags.out != "" {
		if err := os.WriteFile(validateFlags.out, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write report %s: %w", validateFlags.out, err)
		}
	}
	if validateFlags.metricsFile != "" {
		tel := categorizer.NewTelemetry()
		tel.ObserveReport(report)
		if err := tel.WriteTextfile(validateFlags.metricsFile); err != nil {
			return err
		}
	}
	return nil
}
