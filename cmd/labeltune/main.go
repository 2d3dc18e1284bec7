// labeltune post-processes fine-tuned classifier output and validates it.
//
// Usage:
//
//	labeltune prepare
//	labeltune train
//	labeltune infer [--raw] [--top-only] [--input infer_input.md] [--output infer_output.json]
//	labeltune validate [--format text|json|yaml] [--metrics-file run.prom]
//	labeltune status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "labeltune",
	Short: "Rule-adjusted text classification and validation",
	Long: "labeltune runs a fine-tuned text classifier over paragraphs, adjusts the\n" +
		"label scores with a keyword rule table and validates the result against ground truth.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "", "Path to config.json (default: ./config.json)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
