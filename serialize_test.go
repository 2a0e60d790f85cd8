package dflow_test

import (
	"testing"

	dflow "github.com/fibo/PoC-dflow"
)

func TestDocumentRoundTrip(t *testing.T) {
	doc := &dflow.Document{
		Name: "round-trip",
		Args: []string{"x"},
		Outs: []string{"y"},
		Nodes: []dflow.NodeDef{
			{ID: "n1", Name: "x"},
			{ID: "n2", Name: "sum"},
			{ID: "n3", Name: "y"},
		},
		Pipes: []dflow.Pipe{
			{From: dflow.Pin{NodeID: "n1"}, To: dflow.Pin{NodeID: "n2"}},
			{From: dflow.Pin{NodeID: "n2"}, To: dflow.Pin{NodeID: "n3"}},
			{From: dflow.Pin{NodeID: "n1"}, To: dflow.Pin{NodeID: "n2", Position: 1}},
		},
	}

	engine, err := dflow.New(doc)
	if err != nil {
		t.Fatal(err)
	}
	got := engine.Document()

	if got.Name != doc.Name {
		t.Errorf("name = %q, want %q", got.Name, doc.Name)
	}
	assertStringsEqual(t, "args", got.Args, doc.Args)
	assertStringsEqual(t, "outs", got.Outs, doc.Outs)
	if len(got.Nodes) != len(doc.Nodes) {
		t.Fatalf("nodes = %v", got.Nodes)
	}
	for i, n := range doc.Nodes {
		if got.Nodes[i] != n {
			t.Errorf("node[%d] = %+v, want %+v", i, got.Nodes[i], n)
		}
	}
	if len(got.Pipes) != len(doc.Pipes) {
		t.Fatalf("pipes = %v", got.Pipes)
	}
	for i, p := range doc.Pipes {
		if got.Pipes[i] != p {
			t.Errorf("pipe[%d] = %+v, want %+v", i, got.Pipes[i], p)
		}
	}

	// Serializing is idempotent: a second engine built from the emitted
	// document emits it again unchanged.
	second, err := dflow.New(got)
	if err != nil {
		t.Fatal(err)
	}
	again := second.Document()
	if len(again.Pipes) != len(got.Pipes) || len(again.Nodes) != len(got.Nodes) {
		t.Errorf("second round trip diverged: %+v", again)
	}
}

func TestDocumentClone(t *testing.T) {
	doc := &dflow.Document{
		Name:  "original",
		Args:  []string{"x"},
		Nodes: []dflow.NodeDef{{ID: "n1", Name: "x"}},
	}
	clone := doc.Clone()
	clone.Name = "copy"
	clone.Args[0] = "changed"
	clone.Nodes[0].ID = "other"

	if doc.Name != "original" || doc.Args[0] != "x" || doc.Nodes[0].ID != "n1" {
		t.Errorf("mutating the clone reached the original: %+v", doc)
	}

	var nilDoc *dflow.Document
	if nilDoc.Clone() != nil {
		t.Error("cloning nil must yield nil")
	}
}

func TestEngineString(t *testing.T) {
	engine, err := dflow.New(&dflow.Document{
		Name: "demo",
		Args: []string{"x"},
		Outs: []string{"y"},
		Nodes: []dflow.NodeDef{
			{ID: "n1", Name: "x"},
			{ID: "n2", Name: "y"},
		},
		Pipes: []dflow.Pipe{
			{From: dflow.Pin{NodeID: "n1"}, To: dflow.Pin{NodeID: "n2"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "Dflow name=demo args=1 nodes=2 pipes=1 outs=1"
	if got := engine.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func assertStringsEqual(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s = %v, want %v", label, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s[%d] = %q, want %q", label, i, got[i], want[i])
		}
	}
}
