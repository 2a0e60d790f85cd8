package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fibo/PoC-dflow/yaml"
)

// validateCmd checks a graph file without executing it.
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a graph file",
	Long: `Parse a graph file, check it against the graph schema, and apply
the structural rules: declared pipe endpoints, unique node ids, unique
binding names.`,
	Example: `  # Validate a graph
  dflow validate graph.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := yaml.ParseFile(args[0])
		if err != nil {
			return err
		}
		if err := yaml.ValidateSchema(doc); err != nil {
			return err
		}
		if err := doc.Validate(); err != nil {
			return err
		}
		fmt.Printf("%s is valid\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
