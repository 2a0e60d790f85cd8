package dflow

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Kind tags the variant of a callable. Only sync and async callables are
// dispatched; generator variants are recognized but not executed.
type Kind int

const (
	KindSync Kind = iota
	KindAsync
	KindGenerator
	KindAsyncGenerator
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindGenerator:
		return "generator"
	case KindAsyncGenerator:
		return "async-generator"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsAsync reports whether the variant is async-tagged: async or
// async-generator. HasAsyncNodes relies on it, so RunSync refuses a graph
// holding either; only async callables are actually dispatched.
func (k Kind) IsAsync() bool {
	return k == KindAsync || k == KindAsyncGenerator
}

// CallFunc is the canonical call signature of a dflow callable. The
// receiver comes from the engine's context map, resolved by node id first
// and by name second; args are the values gathered through inbound pipes,
// positionally, with nil for unpiped positions.
type CallFunc func(ctx context.Context, receiver any, args []any) (any, error)

// Func is a tagged callable. Construct one with Sync, Async, Generator,
// AsyncGenerator, or Wrap.
type Func struct {
	kind  Kind
	call  CallFunc
	arity int
}

// Sync builds a synchronous callable.
func Sync(call CallFunc) *Func {
	return &Func{kind: KindSync, call: call}
}

// Async builds an asynchronous callable. The driver awaits its result
// before scheduling the next node.
func Async(call CallFunc) *Func {
	return &Func{kind: KindAsync, call: call}
}

// Generator builds a generator-tagged callable. It is recognized by the
// dispatcher but never executed.
func Generator(call CallFunc) *Func {
	return &Func{kind: KindGenerator, call: call}
}

// AsyncGenerator builds an async-generator-tagged callable. Like
// Generator, it is recognized but never executed.
func AsyncGenerator(call CallFunc) *Func {
	return &Func{kind: KindAsyncGenerator, call: call}
}

// Kind returns the callable's variant tag.
func (f *Func) Kind() Kind {
	return f.kind
}

// Arity returns the declared argument count, when known. Wrapped Go
// functions report their reflected arity; hand-built callables report 0.
func (f *Func) Arity() int {
	return f.arity
}

// Call invokes the callable.
func (f *Func) Call(ctx context.Context, receiver any, args []any) (any, error) {
	return f.call(ctx, receiver, args)
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Wrap reflects over an ordinary Go function and returns a synchronous
// callable. An optional leading context.Context parameter receives the
// dispatch context and does not count toward the arity; an optional
// trailing error result is propagated. Argument values are converted to
// the parameter types when possible.
func Wrap(fn any) (*Func, error) {
	if f, ok := fn.(*Func); ok {
		return f, nil
	}
	if call, ok := fn.(CallFunc); ok {
		return Sync(call), nil
	}
	if call, ok := fn.(func(ctx context.Context, receiver any, args []any) (any, error)); ok {
		return Sync(call), nil
	}

	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("dflow: cannot wrap %T as a callable", fn)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("dflow: cannot wrap variadic function %T", fn)
	}
	if t.NumOut() > 2 {
		return nil, fmt.Errorf("dflow: cannot wrap function %T: too many results", fn)
	}
	if t.NumOut() == 2 && t.Out(1) != errType {
		return nil, fmt.Errorf("dflow: cannot wrap function %T: second result must be error", fn)
	}

	wantCtx := t.NumIn() > 0 && t.In(0) == ctxType
	arity := t.NumIn()
	if wantCtx {
		arity--
	}

	call := func(ctx context.Context, _ any, args []any) (any, error) {
		in := make([]reflect.Value, 0, t.NumIn())
		if wantCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i := 0; i < arity; i++ {
			pt := t.In(len(in))
			var a any
			if i < len(args) {
				a = args[i]
			}
			if a == nil {
				in = append(in, reflect.Zero(pt))
				continue
			}
			av := reflect.ValueOf(a)
			if !av.Type().AssignableTo(pt) {
				if !av.Type().ConvertibleTo(pt) {
					return nil, fmt.Errorf("argument %d: expected %s, got %T", i, pt, a)
				}
				av = av.Convert(pt)
			}
			in = append(in, av)
		}
		out := v.Call(in)
		switch len(out) {
		case 0:
			return nil, nil
		case 1:
			if t.Out(0) == errType {
				err, _ := out[0].Interface().(error)
				return nil, err
			}
			return out[0].Interface(), nil
		default:
			err, _ := out[1].Interface().(error)
			if err != nil {
				return nil, err
			}
			return out[0].Interface(), nil
		}
	}

	return &Func{kind: KindSync, call: call, arity: arity}, nil
}

// DetectKind classifies source code by the await/yield textual heuristic
// used to pick a compiler factory.
func DetectKind(code string) Kind {
	hasAwait := strings.Contains(code, "await")
	hasYield := strings.Contains(code, "yield")
	switch {
	case hasAwait && hasYield:
		return KindAsyncGenerator
	case hasYield:
		return KindGenerator
	case hasAwait:
		return KindAsync
	default:
		return KindSync
	}
}

// Compiler turns user source code into a callable, one factory per
// variant. The script package provides the Lua implementation; the engine
// selects the factory from the code text via DetectKind.
type Compiler interface {
	CompileSync(args []string, body string) (*Func, error)
	CompileAsync(args []string, body string) (*Func, error)
	CompileGenerator(args []string, body string) (*Func, error)
	CompileAsyncGenerator(args []string, body string) (*Func, error)
}
