package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

func echoBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "echo",
			Category:    "core",
			Description: "Returns its input unchanged",
			Args:        []string{"value"},
		},
		Fn: func(value any) any {
			return value
		},
	}
}

func concatBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "concat",
			Category:    "core",
			Description: "Joins two values as strings",
			Args:        []string{"a", "b"},
		},
		Fn: func(a, b any) any {
			var sb strings.Builder
			sb.WriteString(stringify(a))
			sb.WriteString(stringify(b))
			return sb.String()
		},
	}
}

func nowBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "now",
			Category:    "core",
			Description: "Returns the current time in RFC 3339 form",
		},
		Fn: func() any {
			return time.Now().UTC().Format(time.RFC3339)
		},
	}
}

func addBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "add",
			Category:    "math",
			Description: "Adds two numbers",
			Args:        []string{"a", "b"},
		},
		Fn: func(a, b any) (any, error) {
			x, err := toNumber(a)
			if err != nil {
				return nil, err
			}
			y, err := toNumber(b)
			if err != nil {
				return nil, err
			}
			return x + y, nil
		},
	}
}

func mulBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "mul",
			Category:    "math",
			Description: "Multiplies two numbers",
			Args:        []string{"a", "b"},
		},
		Fn: func(a, b any) (any, error) {
			x, err := toNumber(a)
			if err != nil {
				return nil, err
			}
			y, err := toNumber(b)
			if err != nil {
				return nil, err
			}
			return x * y, nil
		},
	}
}

func jsonParseBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "json_parse",
			Category:    "data",
			Description: "Parses a JSON string into a value",
			Args:        []string{"text"},
		},
		Fn: func(text any) (any, error) {
			s, ok := text.(string)
			if !ok {
				return nil, fmt.Errorf("json_parse: expected a string, got %T", text)
			}
			value, err := oj.ParseString(s)
			if err != nil {
				return nil, fmt.Errorf("json_parse: %w", err)
			}
			return value, nil
		},
	}
}

func jsonStringifyBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "json_stringify",
			Category:    "data",
			Description: "Serializes a value to a JSON string",
			Args:        []string{"value"},
		},
		Fn: func(value any) any {
			return oj.JSON(value)
		},
	}
}

func jsonPathBuiltin() Builtin {
	return Builtin{
		Metadata: Metadata{
			Name:        "jsonpath",
			Category:    "data",
			Description: "Evaluates a JSONPath expression against a value",
			Args:        []string{"path", "value"},
		},
		Fn: func(path, value any) (any, error) {
			pathStr, ok := path.(string)
			if !ok {
				return nil, fmt.Errorf("jsonpath: expected a string path, got %T", path)
			}
			expr, err := jp.ParseString(pathStr)
			if err != nil {
				return nil, fmt.Errorf("jsonpath: invalid expression %q: %w", pathStr, err)
			}
			results := expr.Get(value)
			switch len(results) {
			case 0:
				return nil, nil
			case 1:
				return results[0], nil
			default:
				return results, nil
			}
		},
	}
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64, int, int64, bool:
		return fmt.Sprint(value)
	default:
		return oj.JSON(value)
	}
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
