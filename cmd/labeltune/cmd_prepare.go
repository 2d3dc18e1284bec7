package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yashubustudio/labeltune/internal/workspace"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Write the inference input from the ground-truth corpus",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		n, err := workspace.New(cfg).Prepare()
		if err != nil {
			return err
		}
		logger.Info().Int("paragraphs", n).Str("path", cfg.InferInputPath).Msg("Inference input written")
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d paragraphs to %s\n", n, cfg.InferInputPath)
		return nil
	},
}
