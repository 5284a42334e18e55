package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "brainspark-engine",
	Short: "Assessment scoring and mastery aggregation engine",
	Long: "BrainSpark engine — grades free-text answers against rubrics, folds answer\n" +
		"writes into daily analytics, and maintains decaying per-topic mastery.",
	RunE: runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides configured db.path)")
	rootCmd.PersistentFlags().String("addr", "", "HTTP listen address (overrides configured addr)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(versionCmd)
}
