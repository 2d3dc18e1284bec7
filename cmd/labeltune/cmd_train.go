package main

import (
	"github.com/spf13/cobra"

	"yashubustudio/labeltune/internal/workspace"
)

var trainFlags struct {
	noBackup bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the configured fine-tuning command",
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().BoolVar(&trainFlags.noBackup, "no-backup", false, "Do not move an existing model directory aside first")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	ws := workspace.New(cfg)
	if err := ws.Ready(workspace.StageTrain); err != nil {
		return err
	}
	if !trainFlags.noBackup {
		backup, err := ws.BackupModel()
		if err != nil {
			return err
		}
		if backup != "" {
			logger.Info().Str("backup", backup).Msg("Existing model backed up")
		}
	}
	last := -1
	return workspace.NewTrainer(cfg.Trainer, logger).Run(cmd.Context(), func(p workspace.Progress) {
		if p.Percent >= 0 && p.Percent != last {
			last = p.Percent
			logger.Info().Int("percent", p.Percent).Msg("Training progress")
		}
	})
}
