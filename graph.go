package dflow

import (
	"context"
	"slices"
)

// materialize builds a fresh sub-graph instance from a template and
// performs function inheritance: every callable binding of the parent
// whose name is not an I/O marker of the nested graph is snapshot-copied
// into the child, along with its argument-name list and its context
// entry. Sub-graph templates are inherited the same way so nested
// templates keep resolving. The snapshot is by value: later mutation of
// the parent's tables does not affect the child.
func (e *Engine) materialize(tmpl *Document) (*Engine, error) {
	child, err := New(tmpl, WithCompiler(e.compiler), WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	shadowed := make(map[string]bool, len(tmpl.Args)+len(tmpl.Outs))
	for _, name := range tmpl.Args {
		shadowed[name] = true
	}
	for _, name := range tmpl.Outs {
		shadowed[name] = true
	}

	for name, b := range e.funcs {
		if shadowed[name] {
			continue
		}
		child.funcs[name] = b.clone()
		child.argNames[name] = slices.Clone(e.argNames[name])
		if value, exists := e.contexts[name]; exists {
			child.contexts[name] = value
		}
	}
	for name, nested := range e.graphs {
		if shadowed[name] || name == tmpl.Name {
			continue
		}
		if _, taken := child.graphs[name]; taken {
			continue
		}
		child.graphs[name] = nested
		child.argNames[name] = slices.Clone(e.argNames[name])
	}
	return child, nil
}

// runGraph executes one sub-graph instance invoked as nodeID in its
// parent: argument injection, recursive run, output extraction. All of
// the child's work happens strictly between injection and extraction.
// Child errors are re-wrapped with the parent's nodeID and graph name.
func (e *Engine) runGraph(ctx context.Context, nodeID, name string, child *Engine) error {
	args, err := e.ArgValues(nodeID)
	if err != nil {
		return err
	}

	// Input-marker nodes named after a formal argument already hold that
	// argument's value before the child runs, as if their output at the
	// argument's position had been precomputed.
	for _, subID := range child.nodeOrder {
		subName := child.nodes[subID]
		for position, argName := range child.args {
			if subName != argName || position >= len(args) {
				continue
			}
			child.cache[PinID(Pin{NodeID: subID, Position: position})] = args[position]
		}
	}

	child.state = StateRunning
	if err := child.runNodes(ctx); err != nil {
		child.state = StateFailed
		return &NodeExecutionError{NodeID: nodeID, NodeName: name, Err: err}
	}
	child.state = StateCompleted

	// Project each output-marker value back into the parent's cache at
	// the invoking node's pin for that output position.
	for _, subID := range child.nodeOrder {
		subName := child.nodes[subID]
		for position, outName := range child.outs {
			if subName != outName {
				continue
			}
			inbound, piped := child.PipeOfTarget(Pin{NodeID: subID})
			if !piped {
				continue
			}
			value, cached := child.Output(inbound.From)
			if !cached {
				continue
			}
			e.cache[PinID(Pin{NodeID: nodeID, Position: position})] = value
		}
	}
	return nil
}
