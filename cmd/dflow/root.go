package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	textFormat = "text"
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	// Global flags.
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dflow",
	Short: "A minimal dataflow programming engine",
	Long: `Dflow executes dataflow graphs: nodes bound to functions, pipes
carrying values between pins, scheduled by topological level.

Graphs load from YAML or JSON files, with function bodies compiled
through the embedded script engine.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&output, "output", textFormat, "Output format (text, json, yaml)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
