package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goyaml "github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/oj"

	dflow "github.com/fibo/PoC-dflow"
)

// ParseYAML parses a YAML graph document.
func ParseYAML(data []byte) (*GraphDocument, error) {
	var doc GraphDocument
	if err := goyaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: parse: %w", err)
	}
	return &doc, nil
}

// ParseJSON parses a JSON graph document.
func ParseJSON(data []byte) (*GraphDocument, error) {
	value, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("yaml: parse json: %w", err)
	}
	return documentFromValue(value)
}

// ParseFile parses a graph document, choosing the format from the file
// extension (.json is JSON, anything else YAML).
func ParseFile(path string) (*GraphDocument, error) {
	data, err := os.ReadFile(path) // #nosec G304 - user-provided graph file
	if err != nil {
		return nil, fmt.Errorf("yaml: read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// MarshalYAML serializes a graph document to YAML.
func MarshalYAML(doc *GraphDocument) ([]byte, error) {
	data, err := goyaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("yaml: marshal: %w", err)
	}
	return data, nil
}

// MarshalJSON serializes a graph document to JSON.
func MarshalJSON(doc *GraphDocument) ([]byte, error) {
	return []byte(oj.JSON(doc.value())), nil
}

// value builds the generic form of the document used for JSON emission
// and schema validation.
func (d *GraphDocument) value() map[string]any {
	m := map[string]any{"name": d.Name}
	if len(d.Args) > 0 {
		m["args"] = stringsToValue(d.Args)
	}
	if len(d.Outs) > 0 {
		m["outs"] = stringsToValue(d.Outs)
	}
	if len(d.Nodes) > 0 {
		nodes := make([]any, 0, len(d.Nodes))
		for _, n := range d.Nodes {
			nodes = append(nodes, map[string]any{"id": n.ID, "name": n.Name})
		}
		m["nodes"] = nodes
	}
	if len(d.Pipes) > 0 {
		pipes := make([]any, 0, len(d.Pipes))
		for _, p := range d.Pipes {
			pipes = append(pipes, map[string]any{
				"from": pinToValue(p.From),
				"to":   pinToValue(p.To),
			})
		}
		m["pipes"] = pipes
	}
	if len(d.Funcs) > 0 {
		funcs := make([]any, 0, len(d.Funcs))
		for _, f := range d.Funcs {
			fm := map[string]any{"name": f.Name, "code": f.Code}
			if len(f.Args) > 0 {
				fm["args"] = stringsToValue(f.Args)
			}
			funcs = append(funcs, fm)
		}
		m["funcs"] = funcs
	}
	if len(d.Graphs) > 0 {
		graphs := make([]any, 0, len(d.Graphs))
		for i := range d.Graphs {
			graphs = append(graphs, d.Graphs[i].value())
		}
		m["graphs"] = graphs
	}
	return m
}

func pinToValue(p PinDocument) any {
	if p.Position == 0 {
		return p.NodeID
	}
	return []any{p.NodeID, int64(p.Position)}
}

func stringsToValue(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func documentFromValue(v any) (*GraphDocument, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("yaml: graph document must be an object, got %T", v)
	}
	doc := &GraphDocument{}
	doc.Name, _ = m["name"].(string)

	var err error
	if doc.Args, err = stringsFromValue(m["args"]); err != nil {
		return nil, fmt.Errorf("yaml: args: %w", err)
	}
	if doc.Outs, err = stringsFromValue(m["outs"]); err != nil {
		return nil, fmt.Errorf("yaml: outs: %w", err)
	}

	if nodes, exists := m["nodes"]; exists {
		list, ok := nodes.([]any)
		if !ok {
			return nil, fmt.Errorf("yaml: nodes must be an array, got %T", nodes)
		}
		for _, item := range list {
			nm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("yaml: node must be an object, got %T", item)
			}
			id, _ := nm["id"].(string)
			name, _ := nm["name"].(string)
			doc.Nodes = append(doc.Nodes, NodeDocument{ID: id, Name: name})
		}
	}

	if pipes, exists := m["pipes"]; exists {
		list, ok := pipes.([]any)
		if !ok {
			return nil, fmt.Errorf("yaml: pipes must be an array, got %T", pipes)
		}
		for _, item := range list {
			pm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("yaml: pipe must be an object, got %T", item)
			}
			from, err := pinFromValue(pm["from"])
			if err != nil {
				return nil, err
			}
			to, err := pinFromValue(pm["to"])
			if err != nil {
				return nil, err
			}
			doc.Pipes = append(doc.Pipes, PipeDocument{From: from, To: to})
		}
	}

	if funcs, exists := m["funcs"]; exists {
		list, ok := funcs.([]any)
		if !ok {
			return nil, fmt.Errorf("yaml: funcs must be an array, got %T", funcs)
		}
		for _, item := range list {
			fm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("yaml: func must be an object, got %T", item)
			}
			f := FuncDocument{}
			f.Name, _ = fm["name"].(string)
			f.Code, _ = fm["code"].(string)
			if f.Args, err = stringsFromValue(fm["args"]); err != nil {
				return nil, fmt.Errorf("yaml: func %s args: %w", f.Name, err)
			}
			doc.Funcs = append(doc.Funcs, f)
		}
	}

	if graphs, exists := m["graphs"]; exists {
		list, ok := graphs.([]any)
		if !ok {
			return nil, fmt.Errorf("yaml: graphs must be an array, got %T", graphs)
		}
		for _, item := range list {
			nested, err := documentFromValue(item)
			if err != nil {
				return nil, err
			}
			doc.Graphs = append(doc.Graphs, *nested)
		}
	}
	return doc, nil
}

func pinFromValue(v any) (PinDocument, error) {
	switch value := v.(type) {
	case string:
		pin := dflow.ParsePinID(value)
		return PinDocument{NodeID: pin.NodeID, Position: pin.Position}, nil
	case []any:
		pin, err := pinFromPair(value)
		if err != nil {
			return PinDocument{}, err
		}
		return PinDocument{NodeID: pin.NodeID, Position: pin.Position}, nil
	default:
		return PinDocument{}, fmt.Errorf("yaml: pin must be a string or a [nodeId, position] pair, got %T", v)
	}
}

func stringsFromValue(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of strings, got %T", v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}
