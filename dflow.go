// Package dflow implements a minimal dataflow programming engine. A user
// authors a directed graph of named nodes connected by pipes; the engine
// executes each node once per run in dependency order, feeding each node's
// inputs from the outputs of its upstream nodes and recording its result.
//
// Nodes may be primitive computations (a callable compiled from user
// source via a Compiler, or a native Go function bound with SetFunc) or
// sub-graphs: named templates instantiated and executed recursively with
// their own argument and output mapping.
//
// A single run is single-threaded and cooperative. Nodes execute one at a
// time in topological order; the driver suspends only when an
// asynchronous callable is dispatched.
package dflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// State tracks the lifecycle of an engine instance. Failed is terminal
// for the current run only; the instance remains usable afterwards.
type State int

const (
	StateConstructed State = iota
	StateReady
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Logger provides structured logging for the engine.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// binding associates a name with a callable, its argument names, and is
// what function inheritance snapshots into a child instance.
type binding struct {
	fn   *Func
	args []string
}

func (b *binding) clone() *binding {
	return &binding{fn: b.fn, args: slices.Clone(b.args)}
}

// Engine is the authoritative in-memory model of one dataflow graph: its
// nodes, pipes, callable and template tables, I/O markers, context map,
// and per-pin output cache. An Engine is not safe for concurrent use.
type Engine struct {
	name string
	args []string
	outs []string

	nodes     map[string]string // node id -> name
	nodeOrder []string
	pipes     map[string]string // target pin id -> source pin id
	pipeOrder []string          // target pin ids, insertion order

	funcs    map[string]*binding
	graphs   map[string]*Document // sub-graph templates by name
	ioNames  map[string]bool
	argNames map[string][]string // name -> declared argument names

	contexts map[string]any // node id or name -> receiver
	cache    map[string]any // pin id -> output value

	children map[string]*Engine // node id -> sub-graph instance

	state    State
	compiler Compiler
	logger   Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompiler sets the code-to-callable compiler used by SetNodeFunc.
func WithCompiler(c Compiler) Option {
	return func(e *Engine) {
		e.compiler = c
	}
}

// WithLogger adds logging to the engine. Sub-graph instances inherit it.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithName sets the engine's name.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// New creates an engine. When doc is non-nil its args and outs are
// registered as I/O markers and its nodes and pipes inserted, leaving the
// engine Ready; a nil doc yields an empty Constructed engine.
func New(doc *Document, opts ...Option) (*Engine, error) {
	e := &Engine{
		nodes:    make(map[string]string),
		pipes:    make(map[string]string),
		funcs:    make(map[string]*binding),
		graphs:   make(map[string]*Document),
		ioNames:  make(map[string]bool),
		argNames: make(map[string][]string),
		contexts: make(map[string]any),
		cache:    make(map[string]any),
		children: make(map[string]*Engine),
		state:    StateConstructed,
	}
	for _, opt := range opts {
		opt(e)
	}
	if doc == nil {
		return e, nil
	}
	e.name = doc.Name
	for _, name := range doc.Args {
		if err := e.SetNodeArg(name); err != nil {
			return nil, err
		}
	}
	for _, name := range doc.Outs {
		if err := e.SetNodeOut(name); err != nil {
			return nil, err
		}
	}
	if err := e.Insert(doc); err != nil {
		return nil, err
	}
	return e, nil
}

// Name returns the engine's name.
func (e *Engine) Name() string {
	return e.name
}

// Args returns the engine's formal argument names.
func (e *Engine) Args() []string {
	return slices.Clone(e.args)
}

// Outs returns the engine's formal output names.
func (e *Engine) Outs() []string {
	return slices.Clone(e.outs)
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// AddNode inserts (id, name) into the node map and returns id. The name
// need not be bound yet; a node may reference a name bound later.
func (e *Engine) AddNode(name, id string) string {
	if _, exists := e.nodes[id]; !exists {
		e.nodeOrder = append(e.nodeOrder, id)
	}
	e.nodes[id] = name
	return id
}

// DelNode removes the node and every pipe referencing it.
func (e *Engine) DelNode(id string) {
	if _, exists := e.nodes[id]; !exists {
		return
	}
	delete(e.nodes, id)
	e.nodeOrder = slices.DeleteFunc(e.nodeOrder, func(other string) bool {
		return other == id
	})
	e.dropBrokenPipes()
}

// dropBrokenPipes removes every pipe whose source or target node is gone.
func (e *Engine) dropBrokenPipes() {
	var dropped []string
	for _, target := range e.pipeOrder {
		source := e.pipes[target]
		_, fromOK := e.nodes[ParsePinID(source).NodeID]
		_, toOK := e.nodes[ParsePinID(target).NodeID]
		if !fromOK || !toOK {
			dropped = append(dropped, target)
		}
	}
	for _, target := range dropped {
		e.deletePipeTarget(target)
	}
}

func (e *Engine) deletePipeTarget(target string) {
	if _, exists := e.pipes[target]; !exists {
		return
	}
	delete(e.pipes, target)
	e.pipeOrder = slices.DeleteFunc(e.pipeOrder, func(other string) bool {
		return other == target
	})
}

// AddPipe stores the pipe, keyed by its target pin. Both endpoint nodes
// must already exist, otherwise a BrokenPipeError is returned. Inserting
// a pipe overwrites any previous source for the same input pin.
func (e *Engine) AddPipe(p Pipe) error {
	if _, ok := e.nodes[p.From.NodeID]; !ok {
		return &BrokenPipeError{Pipe: p}
	}
	if _, ok := e.nodes[p.To.NodeID]; !ok {
		return &BrokenPipeError{Pipe: p}
	}
	target := PinID(p.To)
	if _, exists := e.pipes[target]; !exists {
		e.pipeOrder = append(e.pipeOrder, target)
	}
	e.pipes[target] = PinID(p.From)
	return nil
}

// DelPipe removes the pipe targeting the given input pin.
func (e *Engine) DelPipe(to Pin) {
	e.deletePipeTarget(PinID(to))
}

// Pipes returns the stored pipes in insertion order.
func (e *Engine) Pipes() []Pipe {
	pipes := make([]Pipe, 0, len(e.pipeOrder))
	for _, target := range e.pipeOrder {
		pipes = append(pipes, Pipe{
			From: ParsePinID(e.pipes[target]),
			To:   ParsePinID(target),
		})
	}
	return pipes
}

// PipeOfTarget returns the unique pipe whose target is the given pin.
func (e *Engine) PipeOfTarget(to Pin) (Pipe, bool) {
	source, ok := e.pipes[PinID(to)]
	if !ok {
		return Pipe{}, false
	}
	return Pipe{From: ParsePinID(source), To: to}, true
}

// Insert performs bulk insertion: nodes first, then pipes. A failing pipe
// propagates its BrokenPipeError.
func (e *Engine) Insert(doc *Document) error {
	if doc == nil {
		return nil
	}
	for _, n := range doc.Nodes {
		e.AddNode(n.Name, n.ID)
	}
	for _, p := range doc.Pipes {
		if err := e.AddPipe(p); err != nil {
			return err
		}
	}
	if e.state == StateConstructed {
		e.state = StateReady
	}
	return nil
}

// Delete performs atomic bulk deletion: first the listed nodes, then
// every pipe broken by their removal, then the listed pipes. It returns
// the full graph removed.
func (e *Engine) Delete(doc *Document) *Document {
	deleted := &Document{}
	if doc == nil {
		return deleted
	}
	for _, n := range doc.Nodes {
		name, exists := e.nodes[n.ID]
		if !exists {
			continue
		}
		deleted.Nodes = append(deleted.Nodes, NodeDef{ID: n.ID, Name: name})
		delete(e.nodes, n.ID)
		e.nodeOrder = slices.DeleteFunc(e.nodeOrder, func(other string) bool {
			return other == n.ID
		})
	}
	for _, target := range slices.Clone(e.pipeOrder) {
		source := e.pipes[target]
		_, fromOK := e.nodes[ParsePinID(source).NodeID]
		_, toOK := e.nodes[ParsePinID(target).NodeID]
		if !fromOK || !toOK {
			deleted.Pipes = append(deleted.Pipes, Pipe{
				From: ParsePinID(source),
				To:   ParsePinID(target),
			})
			e.deletePipeTarget(target)
		}
	}
	for _, p := range doc.Pipes {
		target := PinID(p.To)
		source, exists := e.pipes[target]
		if !exists {
			continue
		}
		deleted.Pipes = append(deleted.Pipes, Pipe{
			From: ParsePinID(source),
			To:   ParsePinID(target),
		})
		e.deletePipeTarget(target)
	}
	return deleted
}

// checkName guards the single namespace shared by I/O markers, callable
// bindings, and sub-graph templates.
func (e *Engine) checkName(name string) error {
	if e.ioNames[name] {
		return &NodeOverrideError{NodeName: name}
	}
	if _, taken := e.funcs[name]; taken {
		return &NodeOverrideError{NodeName: name}
	}
	if _, taken := e.graphs[name]; taken {
		return &NodeOverrideError{NodeName: name}
	}
	return nil
}

// SetNodeFunc compiles code into a callable and binds it to name with the
// given argument names. Multi-part code is joined with ";". The compiler
// factory is selected by the await/yield heuristic on the code text.
func (e *Engine) SetNodeFunc(name string, args []string, code ...string) error {
	if err := e.checkName(name); err != nil {
		return err
	}
	if e.compiler == nil {
		return fmt.Errorf("dflow: no compiler configured, cannot bind %q", name)
	}
	body := strings.Join(code, ";")
	var (
		fn  *Func
		err error
	)
	switch DetectKind(body) {
	case KindAsync:
		fn, err = e.compiler.CompileAsync(args, body)
	case KindGenerator:
		fn, err = e.compiler.CompileGenerator(args, body)
	case KindAsyncGenerator:
		fn, err = e.compiler.CompileAsyncGenerator(args, body)
	default:
		fn, err = e.compiler.CompileSync(args, body)
	}
	if err != nil {
		return fmt.Errorf("dflow: compile %q: %w", name, err)
	}
	e.funcs[name] = &binding{fn: fn, args: slices.Clone(args)}
	e.argNames[name] = slices.Clone(args)
	return nil
}

// SetFunc binds an already-compiled callable. fn may be a *Func, a
// CallFunc, or an ordinary Go function (wrapped via reflection). When
// args are omitted and the callable's arity is n > 0, the names
// "arg0" ... "arg{n-1}" are synthesized.
func (e *Engine) SetFunc(name string, fn any, args ...string) error {
	if err := e.checkName(name); err != nil {
		return err
	}
	callable, err := Wrap(fn)
	if err != nil {
		return err
	}
	if len(args) == 0 && callable.Arity() > 0 {
		args = make([]string, callable.Arity())
		for i := range args {
			args[i] = fmt.Sprintf("arg%d", i)
		}
	}
	e.funcs[name] = &binding{fn: callable, args: slices.Clone(args)}
	e.argNames[name] = slices.Clone(args)
	return nil
}

// SetNodeArg registers name as a formal input marker of this graph.
func (e *Engine) SetNodeArg(name string) error {
	if err := e.checkName(name); err != nil {
		return err
	}
	e.ioNames[name] = true
	e.args = append(e.args, name)
	return nil
}

// SetNodeOut registers name as a formal output marker of this graph. An
// output marker has the single input "out".
func (e *Engine) SetNodeOut(name string) error {
	if err := e.checkName(name); err != nil {
		return err
	}
	e.ioNames[name] = true
	e.outs = append(e.outs, name)
	e.argNames[name] = []string{"out"}
	return nil
}

// SetNodeGraph registers a sub-graph template under its document name.
func (e *Engine) SetNodeGraph(doc *Document) error {
	if err := e.checkName(doc.Name); err != nil {
		return err
	}
	e.graphs[doc.Name] = doc
	e.argNames[doc.Name] = slices.Clone(doc.Args)
	return nil
}

// SetContext binds a receiver value to a node id or name. At dispatch
// time the receiver resolves by node id first, by name second.
func (e *Engine) SetContext(key string, value any) {
	e.contexts[key] = value
}

// ArgValues gathers the argument values of a node through its inbound
// pipes: for each declared argument position, the cached output at the
// source pin of the pipe targeting that position, or nil when no pipe
// feeds it. Returns a NodeNotFoundError when the node is absent.
func (e *Engine) ArgValues(nodeID string) ([]any, error) {
	name, exists := e.nodes[nodeID]
	if !exists {
		return nil, &NodeNotFoundError{NodeID: nodeID}
	}
	names := e.argNames[name]
	values := make([]any, len(names))
	for position := range names {
		source, piped := e.pipes[PinID(Pin{NodeID: nodeID, Position: position})]
		if piped {
			values[position] = e.cache[source]
		}
	}
	return values, nil
}

// Output returns the cached value at the given pin.
func (e *Engine) Output(p Pin) (any, bool) {
	value, exists := e.cache[PinID(p)]
	return value, exists
}

// OutputOf returns the position-0 cached output of a node.
func (e *Engine) OutputOf(nodeID string) (any, bool) {
	return e.Output(Pin{NodeID: nodeID})
}

// Outputs returns a copy of the output cache.
func (e *Engine) Outputs() map[string]any {
	outputs := make(map[string]any, len(e.cache))
	for pin, value := range e.cache {
		outputs[pin] = value
	}
	return outputs
}

// OutValues returns the value feeding each output-marker node, keyed by
// output name: for a node named after a formal output, the cached value
// at the source pin of its inbound pipe. Outputs with no inbound pipe or
// no cached value are absent.
func (e *Engine) OutValues() map[string]any {
	values := make(map[string]any, len(e.outs))
	for _, id := range e.nodeOrder {
		name := e.nodes[id]
		for _, outName := range e.outs {
			if name != outName {
				continue
			}
			inbound, piped := e.PipeOfTarget(Pin{NodeID: id})
			if !piped {
				continue
			}
			if value, cached := e.Output(inbound.From); cached {
				values[outName] = value
			}
		}
	}
	return values
}

// HasAsyncNodes reports whether the graph can suspend: any async-tagged
// callable binding, or a sub-graph template that transitively references
// one.
func (e *Engine) HasAsyncNodes() bool {
	for _, b := range e.funcs {
		if b.fn.Kind().IsAsync() {
			return true
		}
	}
	seen := make(map[string]bool)
	for name := range e.graphs {
		if e.templateHasAsync(name, seen) {
			return true
		}
	}
	return false
}

func (e *Engine) templateHasAsync(name string, seen map[string]bool) bool {
	if seen[name] {
		return false
	}
	seen[name] = true
	tmpl := e.graphs[name]
	if tmpl == nil {
		return false
	}
	for _, n := range tmpl.Nodes {
		if b, bound := e.funcs[n.Name]; bound && b.fn.Kind().IsAsync() {
			return true
		}
		if _, nested := e.graphs[n.Name]; nested && e.templateHasAsync(n.Name, seen) {
			return true
		}
	}
	return false
}

// RunSync executes the whole graph in-line. It refuses graphs with async
// nodes; use Run for those.
func (e *Engine) RunSync() error {
	if e.HasAsyncNodes() {
		return fmt.Errorf("dflow: graph %q has async nodes, use Run", e.name)
	}
	return e.runWholeGraph(context.Background())
}

// Run executes the whole graph, awaiting asynchronous callables. The
// context is checked before each node dispatch; cancellation aborts the
// run between nodes.
func (e *Engine) Run(ctx context.Context) error {
	return e.runWholeGraph(ctx)
}

func (e *Engine) runWholeGraph(ctx context.Context) error {
	e.state = StateRunning
	clear(e.cache)
	if err := e.runNodes(ctx); err != nil {
		e.state = StateFailed
		return err
	}
	e.state = StateCompleted
	return nil
}

// runNodes iterates the scheduled order once, dispatching each node. It
// does not clear the cache, so sub-graph argument injection survives.
func (e *Engine) runNodes(ctx context.Context) error {
	scheduled := Schedule(e.nodeOrder, e.Pipes())
	for _, s := range scheduled {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Level == LevelInfinity {
			e.debug(ctx, "skipping unschedulable node", "nodeId", s.NodeID, "name", e.nodes[s.NodeID])
			continue
		}
		if err := e.runNode(ctx, s.NodeID); err != nil {
			return err
		}
	}
	return nil
}

// runNode materializes the sub-graph instance if the node's name resolves
// to a template, dispatches the bound callable if any, then runs the
// sub-graph. A name bound to both runs callable first; the sub-graph
// output overwrites the callable's.
func (e *Engine) runNode(ctx context.Context, nodeID string) error {
	name := e.nodes[nodeID]
	if tmpl, isGraph := e.graphs[name]; isGraph {
		if _, materialized := e.children[nodeID]; !materialized {
			child, err := e.materialize(tmpl)
			if err != nil {
				return &NodeExecutionError{NodeID: nodeID, NodeName: name, Err: err}
			}
			e.children[nodeID] = child
		}
	}
	if b, bound := e.funcs[name]; bound {
		if err := e.dispatch(ctx, nodeID, name, b); err != nil {
			return err
		}
	}
	if child, isInstance := e.children[nodeID]; isInstance {
		if err := e.runGraph(ctx, nodeID, name, child); err != nil {
			return err
		}
	}
	return nil
}

// dispatch gathers argument values, resolves the receiver, invokes the
// callable, and records the result at the node's position-0 output pin.
func (e *Engine) dispatch(ctx context.Context, nodeID, name string, b *binding) error {
	args, err := e.ArgValues(nodeID)
	if err != nil {
		return err
	}
	receiver := e.receiver(nodeID, name)

	var result any
	switch b.fn.Kind() {
	case KindSync:
		result, err = b.fn.Call(ctx, receiver, args)
	case KindAsync:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			value, callErr := b.fn.Call(gctx, receiver, args)
			result = value
			return callErr
		})
		err = g.Wait()
	default:
		e.debug(ctx, "skipping generator callable", "nodeId", nodeID, "name", name, "kind", b.fn.Kind().String())
		return nil
	}
	if err != nil {
		return &NodeExecutionError{NodeID: nodeID, NodeName: name, Err: err}
	}
	e.debug(ctx, "node executed", "nodeId", nodeID, "name", name)
	e.cache[nodeID] = result
	return nil
}

func (e *Engine) receiver(nodeID, name string) any {
	if value, exists := e.contexts[nodeID]; exists {
		return value
	}
	if value, exists := e.contexts[name]; exists {
		return value
	}
	return nil
}

func (e *Engine) debug(ctx context.Context, msg string, keysAndValues ...any) {
	if e.logger != nil {
		e.logger.Debug(ctx, msg, keysAndValues...)
	}
}
