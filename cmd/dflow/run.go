package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goyaml "github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	dflow "github.com/fibo/PoC-dflow"
	"github.com/fibo/PoC-dflow/builtin"
	"github.com/fibo/PoC-dflow/plugin"
	"github.com/fibo/PoC-dflow/script"
	"github.com/fibo/PoC-dflow/yaml"
)

var (
	dryRun      bool
	pluginPaths []string
)

// runCmd executes a graph file.
var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a graph from a YAML or JSON file",
	Long: `Load a graph file, compile its function bindings, run it, and
print the values of its output nodes, or every cached output when the
graph declares no outputs.`,
	Example: `  # Run a graph
  dflow run graph.yaml

  # Validate without executing
  dflow run graph.yaml --dry-run

  # Print outputs as JSON
  dflow run graph.yaml --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd.Context(), args[0])
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the graph without executing")
	runCmd.Flags().StringArrayVar(&pluginPaths, "plugin", nil, "Load a WebAssembly plugin (manifest or .wasm path, repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runGraph(ctx context.Context, path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand path: %w", err)
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("access file: %w", err)
	}

	logger := &stdLogger{debug: verbose}
	if verbose {
		logger.Info(ctx, "loading graph", "path", absPath)
	}

	doc, err := yaml.ParseFile(absPath)
	if err != nil {
		return err
	}
	if err := yaml.ValidateSchema(doc); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}

	if dryRun {
		fmt.Println("Graph validation successful (dry run)")
		return nil
	}

	compiler := script.NewCompiler().Verbose(verbose)
	engine, err := yaml.Load(doc,
		dflow.WithCompiler(compiler),
		dflow.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if _, err := builtin.RegisterAll(engine); err != nil {
		return err
	}
	for _, pluginPath := range pluginPaths {
		p, err := plugin.Load(ctx, pluginPath)
		if err != nil {
			return err
		}
		defer p.Close(ctx)
		if err := plugin.Bind(engine, p); err != nil {
			return err
		}
		if verbose {
			logger.Info(ctx, "plugin loaded", "name", p.Metadata().Name)
		}
	}

	if verbose {
		logger.Info(ctx, "running", "graph", engine.String())
	}
	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("run %s: %w", doc.Name, err)
	}
	outputs := engine.OutValues()
	if len(engine.Outs()) == 0 {
		outputs = engine.Outputs()
	}
	return printOutputs(outputs)
}

func printOutputs(outputs map[string]any) error {
	switch output {
	case jsonFormat:
		fmt.Println(oj.JSON(outputs, &oj.Options{Indent: 2, Sort: true}))
	case yamlFormat:
		data, err := goyaml.Marshal(outputs)
		if err != nil {
			return fmt.Errorf("marshal outputs: %w", err)
		}
		fmt.Print(string(data))
	default:
		names := make([]string, 0, len(outputs))
		for name := range outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			value := outputs[name]
			switch v := value.(type) {
			case nil:
				fmt.Printf("%s: null\n", name)
			case string:
				fmt.Printf("%s: %s\n", name, v)
			case map[string]any, []any:
				fmt.Printf("%s: %s\n", name, oj.JSON(v))
			default:
				fmt.Printf("%s: %v\n", name, v)
			}
		}
	}
	return nil
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
