package sandbox

import (
	"encoding/json"
	"fmt"

	"go.starlark.net/starlark"
)

// goToStarlark converts a decoded Go value into its Starlark equivalent.
func goToStarlark(v interface{}) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", v, err)
		}
		return starlark.Float(f), nil
	case []interface{}:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			ev, err := goToStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		return starlark.NewList(elems), nil
	case map[string]interface{}:
		d := starlark.NewDict(len(v))
		for k, val := range v {
			sv, err := goToStarlark(val)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported value for sandbox: %T", v)
}

// starlarkToGo converts a Starlark value back into plain Go data.
func starlarkToGo(v starlark.Value) (interface{}, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		f, _ := starlark.AsFloat(v)
		return f, nil
	case starlark.Float:
		return float64(v), nil
	case *starlark.List:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := starlarkToGo(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case starlark.Tuple:
		out := make([]interface{}, len(v))
		for i, e := range v {
			ge, err := starlarkToGo(e)
			if err != nil {
				return nil, err
			}
			out[i] = ge
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]interface{}, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("non-string dict key: %s", item[0])
			}
			val, err := starlarkToGo(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported starlark value: %s", v.Type())
}
