package yaml_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	dflow "github.com/fibo/PoC-dflow"
	"github.com/fibo/PoC-dflow/script"
	"github.com/fibo/PoC-dflow/yaml"
)

const programGraph = `
name: double-pi
outs:
  - result
nodes:
  - id: n1
    name: pi
  - id: n2
    name: twice
  - id: n3
    name: result
pipes:
  - from: n1
    to: n2
  - from: n2
    to: n3
funcs:
  - name: pi
    code: return math.pi
  - name: twice
    args: [n]
    code: return n * 2
`

func TestLoad(t *testing.T) {
	doc, err := yaml.ParseYAML([]byte(programGraph))
	if err != nil {
		t.Fatal(err)
	}

	engine, err := yaml.Load(doc, dflow.WithCompiler(script.NewCompiler()))
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.RunSync(); err != nil {
		t.Fatal(err)
	}

	values := engine.OutValues()
	result, ok := values["result"].(float64)
	if !ok {
		t.Fatalf("OutValues = %v", values)
	}
	if math.Abs(result-2*math.Pi) > 1e-9 {
		t.Errorf("result = %v, want 2*pi", result)
	}
}

func TestLoadRegistersNestedGraphs(t *testing.T) {
	text := `
name: outer
nodes:
  - id: n1
    name: three
  - id: n2
    name: add-one
pipes:
  - from: n1
    to: n2
funcs:
  - name: three
    code: return 3
graphs:
  - name: add-one
    args: [n]
    outs: [m]
    nodes:
      - id: g1
        name: n
      - id: g2
        name: plus
      - id: g3
        name: m
    pipes:
      - from: g1
        to: g2
      - from: g2
        to: g3
    funcs:
      - name: plus
        args: [v]
        code: return v + 1
`
	doc, err := yaml.ParseYAML([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := yaml.Load(doc, dflow.WithCompiler(script.NewCompiler()))
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.RunSync(); err != nil {
		t.Fatal(err)
	}
	value, ok := engine.OutputOf("n2")
	if !ok || value != 4.0 {
		t.Errorf("add-one(3) = (%v, %v), want (4, true)", value, ok)
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	doc := &yaml.GraphDocument{Name: ""}
	if _, err := yaml.Load(doc); err == nil {
		t.Error("expected a validation error")
	}
}

func TestLoadRequiresCompilerForFuncs(t *testing.T) {
	doc := &yaml.GraphDocument{
		Name:  "g",
		Funcs: []yaml.FuncDocument{{Name: "f", Code: "return 1"}},
	}
	if _, err := yaml.Load(doc); err == nil {
		t.Error("expected an error without a compiler")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(path, []byte(programGraph), 0o600); err != nil {
		t.Fatal(err)
	}

	engine, err := yaml.LoadFile(path, dflow.WithCompiler(script.NewCompiler()))
	if err != nil {
		t.Fatal(err)
	}
	if engine.Name() != "double-pi" {
		t.Errorf("name = %q", engine.Name())
	}
}
