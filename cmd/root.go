package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	seed       int64  // Master seed for all stochastic draws
	logLevel   string // Log verbosity level
	configPath string // Optional factory.yaml overriding the built-in bundle
	outputDir  string // Directory for tables, series and history files
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "factory-sim",
	Short: "Tabular RL trainer for worker-to-machine assignment on a simulated shop floor",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Master seed for simulator and policy draws")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a factory.yaml parameter bundle (built-in demo bundle when empty)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "out", "results", "Output directory for tables, return series and histories")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ensureOutputDir creates the output directory if needed.
func ensureOutputDir() {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logrus.Fatalf("Failed to create output directory %s: %v", outputDir, err)
	}
}
