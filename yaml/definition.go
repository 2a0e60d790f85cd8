// Package yaml loads and saves dflow graph documents in YAML and JSON
// form, validates them structurally and against a JSON schema, and
// materializes engines from them.
package yaml

import (
	"fmt"
	"strings"

	goyaml "github.com/goccy/go-yaml"

	dflow "github.com/fibo/PoC-dflow"
)

// GraphDocument is the persistence form of an engine or sub-graph
// template: {name, args?, outs?, nodes, pipes}, supplemented with funcs
// and nested graphs so a complete program is loadable from one file.
type GraphDocument struct {
	Name   string          `yaml:"name" json:"name"`
	Args   []string        `yaml:"args,omitempty" json:"args,omitempty"`
	Outs   []string        `yaml:"outs,omitempty" json:"outs,omitempty"`
	Nodes  []NodeDocument  `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Pipes  []PipeDocument  `yaml:"pipes,omitempty" json:"pipes,omitempty"`
	Funcs  []FuncDocument  `yaml:"funcs,omitempty" json:"funcs,omitempty"`
	Graphs []GraphDocument `yaml:"graphs,omitempty" json:"graphs,omitempty"`
}

// NodeDocument represents a node in a document.
type NodeDocument struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// PipeDocument represents a pipe in a document.
type PipeDocument struct {
	From PinDocument `yaml:"from" json:"from"`
	To   PinDocument `yaml:"to" json:"to"`
}

// FuncDocument represents a user-code function binding in a document.
type FuncDocument struct {
	Name string   `yaml:"name" json:"name"`
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
	Code string   `yaml:"code" json:"code"`
}

// PinDocument is a pin in a document. It accepts either the string form
// (bare node id, or "id,position") or the [nodeId, position] pair form;
// a pair with position 0 canonicalizes to the bare node id on load.
type PinDocument struct {
	NodeID   string
	Position int
}

// Pin converts to the engine pin form.
func (p PinDocument) Pin() dflow.Pin {
	return dflow.Pin{NodeID: p.NodeID, Position: p.Position}
}

// UnmarshalYAML accepts the string or pair form of a pin.
func (p *PinDocument) UnmarshalYAML(b []byte) error {
	var s string
	if err := goyaml.Unmarshal(b, &s); err == nil {
		pin := dflow.ParsePinID(s)
		p.NodeID = pin.NodeID
		p.Position = pin.Position
		return nil
	}
	var pair []any
	if err := goyaml.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("yaml: pin must be a string or a [nodeId, position] pair: %w", err)
	}
	pin, err := pinFromPair(pair)
	if err != nil {
		return err
	}
	p.NodeID = pin.NodeID
	p.Position = pin.Position
	return nil
}

// MarshalYAML emits the bare node id for position 0 and the pair form
// otherwise.
func (p PinDocument) MarshalYAML() ([]byte, error) {
	if p.Position == 0 {
		return goyaml.Marshal(p.NodeID)
	}
	return goyaml.Marshal([]any{p.NodeID, p.Position})
}

func pinFromPair(pair []any) (dflow.Pin, error) {
	if len(pair) < 1 || len(pair) > 2 {
		return dflow.Pin{}, fmt.Errorf("yaml: pin pair must be [nodeId] or [nodeId, position], got %d elements", len(pair))
	}
	nodeID, ok := pair[0].(string)
	if !ok {
		return dflow.Pin{}, fmt.Errorf("yaml: pin node id must be a string, got %T", pair[0])
	}
	position := 0
	if len(pair) == 2 {
		switch n := pair[1].(type) {
		case int:
			position = n
		case int64:
			position = int(n)
		case uint64:
			position = int(n)
		case float64:
			position = int(n)
		default:
			return dflow.Pin{}, fmt.Errorf("yaml: pin position must be a number, got %T", pair[1])
		}
	}
	return dflow.Pin{NodeID: nodeID, Position: position}, nil
}

// Core converts the document's structural fields to the engine form.
func (d *GraphDocument) Core() *dflow.Document {
	doc := &dflow.Document{
		Name: d.Name,
		Args: append([]string(nil), d.Args...),
		Outs: append([]string(nil), d.Outs...),
	}
	for _, n := range d.Nodes {
		doc.Nodes = append(doc.Nodes, dflow.NodeDef{ID: n.ID, Name: n.Name})
	}
	for _, p := range d.Pipes {
		doc.Pipes = append(doc.Pipes, dflow.Pipe{From: p.From.Pin(), To: p.To.Pin()})
	}
	return doc
}

// Validate checks the document structurally: required names, well-formed
// node ids, pipes referencing declared nodes, unique binding names.
func (d *GraphDocument) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("yaml: graph name is required")
	}

	nodeIDs := make(map[string]bool)
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("yaml: node id is required")
		}
		if strings.ContainsRune(n.ID, ',') {
			return fmt.Errorf("yaml: node id %q must not contain a comma", n.ID)
		}
		if n.Name == "" {
			return fmt.Errorf("yaml: node %s: name is required", n.ID)
		}
		if nodeIDs[n.ID] {
			return fmt.Errorf("yaml: duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = true
	}

	for _, p := range d.Pipes {
		if !nodeIDs[p.From.NodeID] {
			return fmt.Errorf("yaml: pipe source node %q not found", p.From.NodeID)
		}
		if !nodeIDs[p.To.NodeID] {
			return fmt.Errorf("yaml: pipe target node %q not found", p.To.NodeID)
		}
	}

	names := make(map[string]bool)
	for _, name := range d.Args {
		if name == "" {
			return fmt.Errorf("yaml: empty argument name")
		}
		if names[name] {
			return fmt.Errorf("yaml: duplicate name %q", name)
		}
		names[name] = true
	}
	for _, name := range d.Outs {
		if name == "" {
			return fmt.Errorf("yaml: empty output name")
		}
		if names[name] {
			return fmt.Errorf("yaml: duplicate name %q", name)
		}
		names[name] = true
	}
	for _, f := range d.Funcs {
		if f.Name == "" {
			return fmt.Errorf("yaml: func name is required")
		}
		if f.Code == "" {
			return fmt.Errorf("yaml: func %s: code is required", f.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("yaml: duplicate name %q", f.Name)
		}
		names[f.Name] = true
	}
	for i := range d.Graphs {
		g := &d.Graphs[i]
		if names[g.Name] {
			return fmt.Errorf("yaml: duplicate name %q", g.Name)
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("yaml: graph %s: %w", g.Name, err)
		}
		names[g.Name] = true
	}
	return nil
}
