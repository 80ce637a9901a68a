package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/martinemde/basin/dispatch"
)

// MaxCapabilityCallsPerPlan bounds how many capability calls a single plan
// may make. The call after the quota faults the whole plan.
const MaxCapabilityCallsPerPlan = 5

// bridge exposes the dispatcher inside the sandbox as the mcp module.
type bridge struct {
	ctx        context.Context
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	callCount  int
}

func newBridge(ctx context.Context, dispatcher dispatch.Dispatcher, logger *slog.Logger) *bridge {
	return &bridge{ctx: ctx, dispatcher: dispatcher, logger: logger}
}

// module returns the mcp module with the call_tool builtin.
func (b *bridge) module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "mcp",
		Members: starlark.StringDict{
			"call_tool": starlark.NewBuiltin("call_tool", b.callTool),
		},
	}
}

func (b *bridge) callTool(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var input *starlark.Dict
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &name, &input); err != nil {
		return nil, err
	}

	b.callCount++
	if b.callCount > MaxCapabilityCallsPerPlan {
		return nil, fmt.Errorf("exceeded max capability calls (%d) in solve() plan", MaxCapabilityCallsPerPlan)
	}

	goArgs := map[string]interface{}{}
	if input != nil {
		converted, err := starlarkToGo(input)
		if err != nil {
			return nil, fmt.Errorf("call_tool %s: %w", name, err)
		}
		goArgs = converted.(map[string]interface{})
	}

	resp, err := b.dispatcher.Call(b.ctx, name, goArgs)
	if err != nil {
		return nil, fmt.Errorf("call_tool %s: %w", name, err)
	}
	b.logger.Debug("capability returned", "capability", name, "shape", resp.Shape)
	return responseToStarlark(resp)
}

// responseToStarlark renders a dispatcher response in the shape the plan
// helpers expect: envelopes become dicts with a content list, bare maps stay
// dicts, scalars pass through.
func responseToStarlark(resp dispatch.Response) (starlark.Value, error) {
	switch resp.Shape {
	case dispatch.ShapeEnvelope:
		blocks := make([]interface{}, len(resp.Content))
		for i, block := range resp.Content {
			blocks[i] = map[string]interface{}{"type": "text", "text": block.Text}
		}
		return goToStarlark(map[string]interface{}{"content": blocks})
	case dispatch.ShapeMap:
		return goToStarlark(resp.Fields)
	default:
		return goToStarlark(resp.Value)
	}
}
