// Package builtin provides named native callables that graph documents
// can reference without shipping code: data helpers, arithmetic, JSON
// tools. Callables register on an engine by name and run like any other
// function binding.
package builtin

import (
	"fmt"

	dflow "github.com/fibo/PoC-dflow"
)

// Metadata describes a built-in callable.
type Metadata struct {
	Name        string
	Category    string
	Description string
	Args        []string
}

// Builtin pairs a callable with its metadata.
type Builtin struct {
	Metadata Metadata
	Fn       any
}

// Registry holds built-in callables by name.
type Registry struct {
	builtins map[string]Builtin
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]Builtin)}
}

// Register adds a callable. Registering a name twice replaces the
// earlier entry.
func (r *Registry) Register(b Builtin) {
	if _, exists := r.builtins[b.Metadata.Name]; !exists {
		r.order = append(r.order, b.Metadata.Name)
	}
	r.builtins[b.Metadata.Name] = b
}

// Get returns a builtin by name.
func (r *Registry) Get(name string) (Builtin, bool) {
	b, exists := r.builtins[name]
	return b, exists
}

// All returns the registered builtins in registration order.
func (r *Registry) All() []Builtin {
	out := make([]Builtin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.builtins[name])
	}
	return out
}

// Bind registers every builtin on the engine.
func (r *Registry) Bind(engine *dflow.Engine) error {
	for _, b := range r.All() {
		if err := engine.SetFunc(b.Metadata.Name, b.Fn, b.Metadata.Args...); err != nil {
			return fmt.Errorf("builtin: %s: %w", b.Metadata.Name, err)
		}
	}
	return nil
}

// RegisterAll builds the default registry and binds it on the engine.
func RegisterAll(engine *dflow.Engine) (*Registry, error) {
	registry := Defaults()
	if err := registry.Bind(engine); err != nil {
		return nil, err
	}
	return registry, nil
}

// Defaults returns a registry with every built-in callable.
func Defaults() *Registry {
	registry := NewRegistry()

	registry.Register(echoBuiltin())
	registry.Register(concatBuiltin())
	registry.Register(nowBuiltin())

	registry.Register(addBuiltin())
	registry.Register(mulBuiltin())

	registry.Register(jsonParseBuiltin())
	registry.Register(jsonStringifyBuiltin())
	registry.Register(jsonPathBuiltin())

	return registry
}
