package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RegisterBuiltinCapabilities registers the small built-in capability set
// used by the CLI and tests. The groups deliberately exercise all three
// response shapes.
func RegisterBuiltinCapabilities(reg *Registry) {
	registerCalculator(reg)
	registerStrings(reg)
	registerClock(reg)
}

func numberParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func stringParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func registerCalculator(reg *Registry) {
	// Calculator results travel as envelopes with a JSON payload carrying a
	// "result" key, the wire shape external capability servers use.
	binop := func(name, description string, op func(a, b float64) float64) {
		reg.Register(RegisteredCapability{
			Descriptor: Descriptor{
				Name:        name,
				Description: description,
				Group:       "calculator",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"a": numberParam("First operand."),
						"b": numberParam("Second operand."),
					},
					"required": []string{"a", "b"},
				},
			},
			Handler: func(_ context.Context, args map[string]interface{}) (Response, error) {
				a, ok := GetFloatArg(args, "a")
				if !ok {
					return Response{}, fmt.Errorf("a is required")
				}
				b, ok := GetFloatArg(args, "b")
				if !ok {
					return Response{}, fmt.Errorf("b is required")
				}
				payload, err := json.Marshal(map[string]interface{}{"result": op(a, b)})
				if err != nil {
					return Response{}, err
				}
				return EnvelopeResponse(string(payload)), nil
			},
		})
	}

	binop("add", "Add two numbers and return their sum.", func(a, b float64) float64 { return a + b })
	binop("multiply", "Multiply two numbers and return their product.", func(a, b float64) float64 { return a * b })
}

func registerStrings(reg *Registry) {
	reg.Register(RegisteredCapability{
		Descriptor: Descriptor{
			Name:        "concat",
			Description: "Concatenate two strings.",
			Group:       "strings",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"left":  stringParam("Left part."),
					"right": stringParam("Right part."),
				},
				"required": []string{"left", "right"},
			},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (Response, error) {
			left, _ := GetStringArg(args, "left")
			right, _ := GetStringArg(args, "right")
			return MapResponse(map[string]interface{}{"result": left + right}), nil
		},
	})

	reg.Register(RegisteredCapability{
		Descriptor: Descriptor{
			Name:        "word_count",
			Description: "Count the whitespace-separated words in a text.",
			Group:       "strings",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": stringParam("Text to count words in."),
				},
				"required": []string{"text"},
			},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (Response, error) {
			text, ok := GetStringArg(args, "text")
			if !ok {
				return Response{}, fmt.Errorf("text is required")
			}
			return MapResponse(map[string]interface{}{"result": len(strings.Fields(text))}), nil
		},
	})
}

func registerClock(reg *Registry) {
	reg.Register(RegisteredCapability{
		Descriptor: Descriptor{
			Name:        "now",
			Description: "Return the current time in RFC 3339 form.",
			Group:       "clock",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		Handler: func(_ context.Context, _ map[string]interface{}) (Response, error) {
			return ScalarResponse(time.Now().Format(time.RFC3339)), nil
		},
	})
}
