package yaml

import (
	"fmt"

	dflow "github.com/fibo/PoC-dflow"
)

// Load validates the document and materializes an engine from it. Funcs
// are compiled through the engine's compiler and nested graphs are
// registered as sub-graph templates, so a loaded engine is ready to run.
func Load(doc *GraphDocument, opts ...dflow.Option) (*dflow.Engine, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	engine, err := dflow.New(doc.Core(), opts...)
	if err != nil {
		return nil, err
	}
	if err := registerPrograms(engine, doc); err != nil {
		return nil, err
	}
	return engine, nil
}

// LoadFile parses, validates against the schema, and loads a graph file.
func LoadFile(path string, opts ...dflow.Option) (*dflow.Engine, error) {
	doc, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}
	return Load(doc, opts...)
}

// registerPrograms binds the document's funcs and nested graphs on the
// engine. Nested graphs register flat on the parent engine; inheritance
// carries the bindings down when a sub-graph materializes.
func registerPrograms(engine *dflow.Engine, doc *GraphDocument) error {
	for _, f := range doc.Funcs {
		if err := engine.SetNodeFunc(f.Name, f.Args, f.Code); err != nil {
			return fmt.Errorf("yaml: func %s: %w", f.Name, err)
		}
	}
	for i := range doc.Graphs {
		g := &doc.Graphs[i]
		if err := engine.SetNodeGraph(g.Core()); err != nil {
			return fmt.Errorf("yaml: graph %s: %w", g.Name, err)
		}
		if err := registerPrograms(engine, g); err != nil {
			return err
		}
	}
	return nil
}
