package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	goyaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Example: `  # Show version
  dflow version

  # Show version in JSON format
  dflow version --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		versionInfo := map[string]string{
			"version":   version,
			"commit":    commit,
			"buildDate": buildDate,
			"goVersion": runtime.Version(),
		}

		switch output {
		case jsonFormat:
			data, err := json.MarshalIndent(versionInfo, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal version info: %w", err)
			}
			fmt.Println(string(data))
		case yamlFormat:
			data, err := goyaml.Marshal(versionInfo)
			if err != nil {
				return fmt.Errorf("marshal version info: %w", err)
			}
			fmt.Print(string(data))
		default:
			fmt.Printf("dflow version %s\n", version)
			if version != "dev" {
				fmt.Printf("  commit: %s\n", commit)
				fmt.Printf("  built:  %s\n", buildDate)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
