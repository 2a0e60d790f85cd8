package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatKeys(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "empty", args: nil, want: ""},
		{name: "one pair", args: []any{"node", "n1"}, want: " node=n1"},
		{name: "two pairs", args: []any{"node", "n1", "level", 2}, want: " node=n1 level=2"},
		{name: "odd trailing value", args: []any{"node", "n1", "dangling"}, want: " node=n1 dangling"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatKeys(tt.args); got != tt.want {
				t.Errorf("formatKeys = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	plain, err := expandPath("graph.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if plain != "graph.yaml" {
		t.Errorf("plain path changed to %q", plain)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	expanded, err := expandPath("~/graphs/demo.yaml")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(home, "graphs", "demo.yaml")
	if expanded != want {
		t.Errorf("expanded = %q, want %q", expanded, want)
	}
	if strings.HasPrefix(expanded, "~") {
		t.Errorf("tilde survived in %q", expanded)
	}
}

func TestRunGraphMissingFile(t *testing.T) {
	err := runGraph(t.Context(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("err = %v, want a not-found error", err)
	}
}

func TestRunGraphDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	text := `
name: one
outs: [result]
nodes:
  - id: n1
    name: one
  - id: n2
    name: result
pipes:
  - from: n1
    to: n2
funcs:
  - name: one
    code: return 1
`
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}

	dryRun = true
	defer func() { dryRun = false }()
	if err := runGraph(t.Context(), path); err != nil {
		t.Fatal(err)
	}
}
