package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"yashubustudio/labeltune/internal/workspace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which workflow files exist and which stages can run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		ws := workspace.New(cfg)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ARTIFACT\tPATH\tSTATE")
		for _, a := range ws.Status() {
			state := "not found"
			if a.Exists {
				state = "detected " + a.ModTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.Path, state)
		}
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "STAGE\tREADY")
		for _, stage := range []workspace.Stage{workspace.StageTrain, workspace.StagePrepare, workspace.StageInfer, workspace.StageValidate} {
			ready := "yes"
			if err := ws.Ready(stage); err != nil {
				ready = err.Error()
			}
			fmt.Fprintf(tw, "%s\t%s\n", stage, ready)
		}
		return tw.Flush()
	},
}
