package script_test

import (
	"context"
	"math"
	"strings"
	"testing"

	dflow "github.com/fibo/PoC-dflow"
	"github.com/fibo/PoC-dflow/script"
)

func TestCompileSync(t *testing.T) {
	compiler := script.NewCompiler()

	tests := []struct {
		name string
		args []string
		body string
		in   []any
		want any
	}{
		{
			name: "sum",
			args: []string{"a", "b"},
			body: "return a + b",
			in:   []any{2, 3},
			want: 5.0,
		},
		{
			name: "string concat",
			args: []string{"a", "b"},
			body: "return a .. b",
			in:   []any{"foo", "bar"},
			want: "foobar",
		},
		{
			name: "missing arguments are nil",
			args: []string{"a"},
			body: "if a == nil then return 'empty' end\nreturn a",
			in:   nil,
			want: "empty",
		},
		{
			name: "no arguments",
			args: nil,
			body: "return 7",
			in:   nil,
			want: 7.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := compiler.CompileSync(tt.args, tt.body)
			if err != nil {
				t.Fatal(err)
			}
			if fn.Kind() != dflow.KindSync {
				t.Errorf("kind = %v, want sync", fn.Kind())
			}
			result, err := fn.Call(context.Background(), nil, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if result != tt.want {
				t.Errorf("result = %v (%T), want %v", result, result, tt.want)
			}
		})
	}
}

func TestCompileSyncReceiver(t *testing.T) {
	compiler := script.NewCompiler()
	fn, err := compiler.CompileSync([]string{"x"}, "return self.factor * x")
	if err != nil {
		t.Fatal(err)
	}

	receiver := map[string]any{"factor": 3.0}
	result, err := fn.Call(context.Background(), receiver, []any{math.Pi})
	if err != nil {
		t.Fatal(err)
	}
	if got := result.(float64); math.Abs(got-3*math.Pi) > 1e-9 {
		t.Errorf("result = %v, want 3*pi", got)
	}
}

func TestCompileAsync(t *testing.T) {
	compiler := script.NewCompiler()
	fn, err := compiler.CompileAsync([]string{"n"}, "return await(n) * 2")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Kind() != dflow.KindAsync {
		t.Errorf("kind = %v, want async", fn.Kind())
	}

	result, err := fn.Call(context.Background(), nil, []any{21})
	if err != nil {
		t.Fatal(err)
	}
	if result != 42.0 {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestCompileGeneratorRefusesToRun(t *testing.T) {
	compiler := script.NewCompiler()

	fn, err := compiler.CompileGenerator([]string{"n"}, "return n")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Kind() != dflow.KindGenerator {
		t.Errorf("kind = %v, want generator", fn.Kind())
	}
	if _, err := fn.Call(context.Background(), nil, []any{1}); err == nil {
		t.Error("generator callables must refuse execution")
	}

	async, err := compiler.CompileAsyncGenerator(nil, "return 1")
	if err != nil {
		t.Fatal(err)
	}
	if async.Kind() != dflow.KindAsyncGenerator {
		t.Errorf("kind = %v, want async-generator", async.Kind())
	}
	if _, err := async.Call(context.Background(), nil, nil); err == nil {
		t.Error("async generator callables must refuse execution")
	}
}

func TestCompileErrors(t *testing.T) {
	compiler := script.NewCompiler()

	tests := []struct {
		name string
		args []string
		body string
	}{
		{name: "syntax error", body: "return ((("},
		{name: "invalid argument name", args: []string{"not valid"}, body: "return 1"},
		{name: "empty argument name", args: []string{""}, body: "return 1"},
		{name: "leading digit argument", args: []string{"1a"}, body: "return 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := compiler.CompileSync(tt.args, tt.body); err == nil {
				t.Error("expected a compile error")
			}
		})
	}
}

func TestRuntimeErrorsAreReported(t *testing.T) {
	compiler := script.NewCompiler()
	fn, err := compiler.CompileSync(nil, "error('kaboom')")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fn.Call(context.Background(), nil, nil); err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("err = %v, want the script error message", err)
	}
}

func TestTableBridging(t *testing.T) {
	compiler := script.NewCompiler()

	t.Run("array comes back as a slice", func(t *testing.T) {
		fn, err := compiler.CompileSync(nil, "return {1, 2, 3}")
		if err != nil {
			t.Fatal(err)
		}
		result, err := fn.Call(context.Background(), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		array, ok := result.([]any)
		if !ok {
			t.Fatalf("result = %T, want a slice", result)
		}
		if len(array) != 3 || array[0] != 1.0 || array[2] != 3.0 {
			t.Errorf("array = %v", array)
		}
	})

	t.Run("record comes back as a map", func(t *testing.T) {
		fn, err := compiler.CompileSync(nil, "return {answer = 42}")
		if err != nil {
			t.Fatal(err)
		}
		result, err := fn.Call(context.Background(), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		object, ok := result.(map[string]any)
		if !ok {
			t.Fatalf("result = %T, want a map", result)
		}
		if object["answer"] != 42.0 {
			t.Errorf("object = %v", object)
		}
	})

	t.Run("input tables cross into the chunk", func(t *testing.T) {
		fn, err := compiler.CompileSync([]string{"t"}, "return t.a + t.b")
		if err != nil {
			t.Fatal(err)
		}
		result, err := fn.Call(context.Background(), nil, []any{map[string]any{"a": 1.0, "b": 2.0}})
		if err != nil {
			t.Fatal(err)
		}
		if result != 3.0 {
			t.Errorf("result = %v, want 3", result)
		}
	})
}

func TestSandbox(t *testing.T) {
	compiler := script.NewCompiler()

	tests := []struct {
		name string
		body string
	}{
		{name: "dofile removed", body: "return dofile == nil"},
		{name: "loadfile removed", body: "return loadfile == nil"},
		{name: "load removed", body: "return load == nil"},
		{name: "require removed", body: "return require == nil"},
		{name: "math stays", body: "return math.floor(1.5) == 1"},
		{name: "string stays", body: "return string.upper('a') == 'A'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := compiler.CompileSync(nil, tt.body)
			if err != nil {
				t.Fatal(err)
			}
			result, err := fn.Call(context.Background(), nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			if result != true {
				t.Errorf("result = %v, want true", result)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	compiler := script.NewCompiler()

	fn, err := compiler.CompileSync(nil, `return json_decode('{"a": 1}').a`)
	if err != nil {
		t.Fatal(err)
	}
	result, err := fn.Call(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result != 1.0 {
		t.Errorf("decoded value = %v, want 1", result)
	}

	fn, err = compiler.CompileSync(nil, `return json_encode({answer = 42})`)
	if err != nil {
		t.Fatal(err)
	}
	result, err = fn.Call(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result != `{"answer":42}` {
		t.Errorf("encoded value = %v", result)
	}
}

func TestCompilerSatisfiesEngineInterface(t *testing.T) {
	var _ dflow.Compiler = script.NewCompiler()
}
