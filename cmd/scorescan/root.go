// scorescan reads Wingspan final-score screenshots from disk.
//
// Usage:
//
//	scorescan scan <image> [--json] [--xlsx=<out>]
//	scorescan batch --dir=<path> [--workers=N] [--inmem] [--xlsx=<out>]
//	scorescan watch --dir=<path> [--workers=N]
//	scorescan dbhealth
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "scorescan",
	Short: "Extract Wingspan scores from end-of-game screenshots",
	Long: "scorescan sends score screenshots to a vision model and prints the normalized\n" +
		"scores together with a confidence value and review warnings.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if rootFlags.configPath != "" {
			return os.Setenv(common.ConfigFileEnv, rootFlags.configPath)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "YAML config file (overrides "+common.ConfigFileEnv+")")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "debug | info | warn | error")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(dbhealthCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
