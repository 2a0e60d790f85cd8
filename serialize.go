package dflow

import (
	"fmt"
	"slices"
)

// NodeDef is the persistence form of a node: an (id, name) association.
type NodeDef struct {
	ID   string
	Name string
}

// Document is the lossless value form of an engine or sub-graph
// template. It is the accepted input to New, Insert, and SetNodeGraph,
// and the emitted output of Engine.Document. Round-trip holds modulo
// canonicalization of (nodeId, 0) pins to the bare node id.
type Document struct {
	Name  string
	Args  []string
	Outs  []string
	Nodes []NodeDef
	Pipes []Pipe
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Name:  d.Name,
		Args:  slices.Clone(d.Args),
		Outs:  slices.Clone(d.Outs),
		Nodes: slices.Clone(d.Nodes),
		Pipes: slices.Clone(d.Pipes),
	}
}

// Document serializes the engine's structure. Pipes come out in
// insertion order with canonical pins.
func (e *Engine) Document() *Document {
	doc := &Document{
		Name: e.name,
		Args: slices.Clone(e.args),
		Outs: slices.Clone(e.outs),
	}
	for _, id := range e.nodeOrder {
		doc.Nodes = append(doc.Nodes, NodeDef{ID: id, Name: e.nodes[id]})
	}
	doc.Pipes = e.Pipes()
	return doc
}

// String returns the one-line summary
// "Dflow name={name} args={n} nodes={n} pipes={n} outs={n}".
func (e *Engine) String() string {
	return fmt.Sprintf("Dflow name=%s args=%d nodes=%d pipes=%d outs=%d",
		e.name, len(e.args), len(e.nodes), len(e.pipes), len(e.outs))
}
