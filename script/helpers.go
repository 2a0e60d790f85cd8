package script

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/go-lua"
)

// setupSandbox loads only safe libraries into a fresh state and registers
// the helpers available to user chunks.
func setupSandbox(l *lua.State, verbose bool) {
	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "string", lua.StringOpen, true)
	l.Pop(1)
	lua.Require(l, "table", lua.TableOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)

	// No file or code loading from inside a node.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.PushNil()
		l.SetGlobal(name)
	}

	// await resolves in place so async-classified chunks run unmodified.
	l.Register("await", func(l *lua.State) int {
		return 1
	})
	l.Register("json_encode", jsonEncode)
	l.Register("json_decode", jsonDecode)

	if verbose {
		l.Register("print", func(l *lua.State) int {
			n := l.Top()
			fmt.Print("[script] ")
			for i := 1; i <= n; i++ {
				if i > 1 {
					fmt.Print("\t")
				}
				s, _ := l.ToString(i)
				fmt.Print(s)
			}
			fmt.Println()
			return 0
		})
	}
}

// pushValue bridges a Go value into the Lua stack.
func pushValue(l *lua.State, v any) {
	switch value := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(value)
	case int:
		l.PushInteger(value)
	case int64:
		l.PushInteger(int(value))
	case float64:
		l.PushNumber(value)
	case string:
		l.PushString(value)
	case []any:
		l.NewTable()
		for i, item := range value {
			l.PushInteger(i + 1)
			pushValue(l, item)
			l.SetTable(-3)
		}
	case map[string]any:
		l.NewTable()
		for k, item := range value {
			l.PushString(k)
			pushValue(l, item)
			l.SetTable(-3)
		}
	default:
		if data, err := json.Marshal(value); err == nil {
			l.PushString(string(data))
		} else {
			l.PushNil()
		}
	}
}

// pullValue bridges a Lua value at idx back into Go. Tables with
// contiguous integer keys come back as slices, anything else as maps.
func pullValue(l *lua.State, idx int) any {
	switch l.TypeOf(idx) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s
	case lua.TypeTable:
		return pullTable(l, idx)
	default:
		return nil
	}
}

func pullTable(l *lua.State, idx int) any {
	l.PushValue(idx)

	isArray := true
	maxIndex := 0
	l.PushNil()
	for l.Next(-2) {
		if l.TypeOf(-2) != lua.TypeNumber {
			isArray = false
			l.Pop(2)
			break
		}
		n, _ := l.ToNumber(-2)
		if i := int(n); i > maxIndex {
			maxIndex = i
		}
		l.Pop(1)
	}

	if isArray && maxIndex > 0 {
		array := make([]any, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.PushInteger(i)
			l.Table(-2)
			array[i-1] = pullValue(l, -1)
			l.Pop(1)
		}
		l.Pop(1)
		return array
	}

	object := make(map[string]any)
	l.PushNil()
	for l.Next(-2) {
		key, _ := l.ToString(-2)
		object[key] = pullValue(l, -1)
		l.Pop(1)
	}
	l.Pop(1)
	return object
}

func jsonEncode(l *lua.State) int {
	value := pullValue(l, 1)
	data, err := json.Marshal(value)
	if err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	l.PushString(string(data))
	return 1
}

func jsonDecode(l *lua.State) int {
	s := lua.CheckString(l, 1)
	var value any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	pushValue(l, value)
	return 1
}
