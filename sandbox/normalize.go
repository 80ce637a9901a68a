package sandbox

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.starlark.net/starlark"
)

// unwrapResult reduces a capability response value to its payload. Envelope
// dicts yield the decoded text of their first content block (repairing
// malformed JSON first), unwrapping a "result" key when present; bare dicts
// with a "result" key yield that value; anything else passes through.
func unwrapResult(v starlark.Value, logger *slog.Logger) (starlark.Value, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return v, nil
	}

	if content, found, err := d.Get(starlark.String("content")); err == nil && found {
		if payload, ok := envelopeText(content); ok {
			return decodePayload(payload, logger)
		}
	}

	if result, found, err := d.Get(starlark.String("result")); err == nil && found {
		return result, nil
	}

	return v, nil
}

// envelopeText extracts the first content block's text, if the value has the
// envelope shape.
func envelopeText(content starlark.Value) (string, bool) {
	list, ok := content.(*starlark.List)
	if !ok || list.Len() == 0 {
		return "", false
	}
	block, ok := list.Index(0).(*starlark.Dict)
	if !ok {
		return "", false
	}
	text, found, err := block.Get(starlark.String("text"))
	if err != nil || !found {
		return "", false
	}
	s, ok := text.(starlark.String)
	if !ok {
		return "", false
	}
	return string(s), true
}

// decodePayload parses envelope text as JSON, repairing it when malformed,
// and unwraps a top-level "result" key. Non-JSON text comes back verbatim.
func decodePayload(text string, logger *slog.Logger) (starlark.Value, error) {
	if strings.TrimSpace(text) == "" {
		return starlark.String(text), nil
	}

	parsed, err := decodeJSON(text)
	if err != nil {
		repaired, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return starlark.String(text), nil
		}
		if parsed, err = decodeJSON(repaired); err != nil {
			return starlark.String(text), nil
		}
		logger.Debug("repaired malformed capability payload")
	}

	if m, ok := parsed.(map[string]interface{}); ok {
		if result, ok := m["result"]; ok {
			return goToStarlark(result)
		}
		logger.Debug("capability payload has no result key, returning full object")
	}
	return goToStarlark(parsed)
}

// decodeJSON parses with number fidelity so integer payloads stay integers.
func decodeJSON(text string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// parseResultBuiltin is the strict helper: failures surface as None.
func parseResultBuiltin(logger *slog.Logger) *starlark.Builtin {
	return starlark.NewBuiltin("parse_result", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
			return nil, err
		}
		out, err := unwrapResult(v, logger)
		if err != nil {
			logger.Warn("parse_result failed", "error", err)
			return starlark.None, nil
		}
		return out, nil
	})
}

// safeParseResultBuiltin is the lenient helper: failures return the input.
func safeParseResultBuiltin(logger *slog.Logger) *starlark.Builtin {
	return starlark.NewBuiltin("safe_parse_result", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
			return nil, err
		}
		out, err := unwrapResult(v, logger)
		if err != nil {
			logger.Warn("safe_parse_result failed, returning raw value", "error", err)
			return v, nil
		}
		return out, nil
	})
}
