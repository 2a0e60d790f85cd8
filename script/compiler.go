// Package script compiles user-supplied Lua source into dflow callables.
// It is the code-to-callable collaborator of the engine: four factory
// variants, one per callable kind, over a sandboxed Lua state.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	dflow "github.com/fibo/PoC-dflow"
)

// Compiler implements dflow.Compiler over go-lua. Each invocation of a
// compiled callable runs in a fresh sandboxed Lua state.
type Compiler struct {
	verbose bool
}

// NewCompiler creates a Lua compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Verbose replaces print inside compiled chunks with one that prefixes
// each line with "[script] ".
func (c *Compiler) Verbose(enabled bool) *Compiler {
	c.verbose = enabled
	return c
}

// CompileSync compiles a function body into a synchronous callable. The
// body is Lua statements; its return value becomes the node's output.
func (c *Compiler) CompileSync(args []string, body string) (*dflow.Func, error) {
	call, err := c.compile(args, body)
	if err != nil {
		return nil, err
	}
	return dflow.Sync(call), nil
}

// CompileAsync compiles a function body into an asynchronous callable.
// The chunk runs unmodified: an await helper is registered in the
// sandbox so async-classified code resolves in place.
func (c *Compiler) CompileAsync(args []string, body string) (*dflow.Func, error) {
	call, err := c.compile(args, body)
	if err != nil {
		return nil, err
	}
	return dflow.Async(call), nil
}

// CompileGenerator compiles and validates a generator-tagged callable.
// Generator execution is not supported; the callable refuses to run.
func (c *Compiler) CompileGenerator(args []string, body string) (*dflow.Func, error) {
	if err := c.validate(args, body); err != nil {
		return nil, err
	}
	return dflow.Generator(refuseGenerator), nil
}

// CompileAsyncGenerator compiles and validates an async-generator-tagged
// callable. Like CompileGenerator, execution is refused.
func (c *Compiler) CompileAsyncGenerator(args []string, body string) (*dflow.Func, error) {
	if err := c.validate(args, body); err != nil {
		return nil, err
	}
	return dflow.AsyncGenerator(refuseGenerator), nil
}

func refuseGenerator(context.Context, any, []any) (any, error) {
	return nil, fmt.Errorf("script: generator callables are not executable")
}

// chunk wraps a function body so loading it yields a Lua function with
// the declared argument names.
func chunk(args []string, body string) (string, error) {
	for _, arg := range args {
		if !validIdentifier(arg) {
			return "", fmt.Errorf("script: invalid argument name %q", arg)
		}
	}
	return fmt.Sprintf("return function(%s)\n%s\nend", strings.Join(args, ", "), body), nil
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// validate checks that the wrapped body loads, without executing it.
func (c *Compiler) validate(args []string, body string) error {
	source, err := chunk(args, body)
	if err != nil {
		return err
	}
	l := lua.NewState()
	if err := lua.LoadString(l, source); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	l.Pop(1)
	return nil
}

// compile validates the body once, then returns a call that builds a
// fresh sandboxed state per invocation, binds the receiver as the global
// self, applies the arguments, and bridges the return value back to Go.
func (c *Compiler) compile(args []string, body string) (dflow.CallFunc, error) {
	source, err := chunk(args, body)
	if err != nil {
		return nil, err
	}
	if err := c.validate(args, body); err != nil {
		return nil, err
	}
	arity := len(args)
	verbose := c.verbose

	return func(ctx context.Context, receiver any, callArgs []any) (any, error) {
		l := lua.NewState()
		setupSandbox(l, verbose)

		pushValue(l, receiver)
		l.SetGlobal("self")

		if err := lua.DoString(l, source); err != nil {
			return nil, fmt.Errorf("script: %w", err)
		}
		for i := 0; i < arity; i++ {
			var a any
			if i < len(callArgs) {
				a = callArgs[i]
			}
			pushValue(l, a)
		}
		if err := l.ProtectedCall(arity, 1, 0); err != nil {
			return nil, fmt.Errorf("script: %w", err)
		}
		result := pullValue(l, -1)
		l.Pop(1)
		return result, nil
	}, nil
}
