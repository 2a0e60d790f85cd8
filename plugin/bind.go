package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	dflow "github.com/fibo/PoC-dflow"
)

// Bind registers every function the plugin's manifest declares as a
// named callable on the engine. Async-flagged functions become async
// callables so the dispatcher runs them off the driver goroutine.
func Bind(engine *dflow.Engine, p Plugin) error {
	meta := p.Metadata()
	for _, def := range meta.Funcs {
		if def.Name == "" {
			return fmt.Errorf("plugin %s: func name is required", meta.Name)
		}
		call := callFor(p, def.Name)
		fn := dflow.Sync(call)
		if def.Async {
			fn = dflow.Async(call)
		}
		if err := engine.SetFunc(def.Name, fn, def.Args...); err != nil {
			return fmt.Errorf("plugin %s: %s: %w", meta.Name, def.Name, err)
		}
	}
	return nil
}

// callFor builds the engine-side stub for one exported function: args
// cross as a JSON request, the response unwraps to a value or an error.
func callFor(p Plugin, function string) dflow.CallFunc {
	return func(ctx context.Context, _ any, args []any) (any, error) {
		input, err := json.Marshal(Request{Func: function, Args: args})
		if err != nil {
			return nil, fmt.Errorf("plugin: encode request: %w", err)
		}
		output, err := p.Call(ctx, function, input)
		if err != nil {
			return nil, err
		}
		if len(output) == 0 {
			return nil, nil
		}
		var response Response
		if err := json.Unmarshal(output, &response); err != nil {
			return nil, fmt.Errorf("plugin: decode response: %w", err)
		}
		if !response.Success {
			return nil, fmt.Errorf("plugin: %s: %s", function, response.Error)
		}
		if len(response.Output) == 0 {
			return nil, nil
		}
		var value any
		if err := json.Unmarshal(response.Output, &value); err != nil {
			return nil, fmt.Errorf("plugin: decode output: %w", err)
		}
		return value, nil
	}
}
