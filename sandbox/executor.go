// Package sandbox executes model-generated solve() plans in a Starlark
// interpreter wired to the capability dispatcher. Every fault inside a plan
// is captured as a "[sandbox error: ...]" string so one bad plan never takes
// down the agent loop.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/martinemde/basin/dispatch"
)

const planFilename = "<solve_plan>"

// Plans arrive in a Python-flavored dialect; the bridge is synchronous, so
// async markers are lowered away before parsing.
var (
	asyncDefPattern = regexp.MustCompile(`(?m)^(\s*)async\s+def\s+`)
	awaitPattern    = regexp.MustCompile(`\bawait\s+`)
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	Recursion:       true,
	GlobalReassign:  true,
}

// Executor runs solve() plans against a dispatcher.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an Executor. A nil logger falls back to slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Run executes the plan's solve() function and returns its normalized string
// result. Faults of any kind — parse errors, a missing solve(), runtime
// errors, quota overruns — come back as "[sandbox error: ...]".
func (e *Executor) Run(ctx context.Context, code string, dispatcher dispatch.Dispatcher) string {
	code = lowerAsync(strings.TrimSpace(code))
	e.logger.Debug("executing plan", "bytes", len(code))

	b := newBridge(ctx, dispatcher, e.logger)
	thread := &starlark.Thread{
		Name: planFilename,
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Debug("plan print", "msg", msg)
		},
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{
		"mcp":               b.module(),
		"json":              starlarkjson.Module,
		"re":                reModule(),
		"parse_result":      parseResultBuiltin(e.logger),
		"safe_parse_result": safeParseResultBuiltin(e.logger),
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, planFilename, code, predeclared)
	if err != nil {
		e.logger.Warn("plan execution failed", "error", err)
		return fault(err)
	}

	solve, ok := globals["solve"]
	if !ok {
		return "[sandbox error: no solve() function found in plan]"
	}

	result, err := starlark.Call(thread, solve, nil, nil)
	if err != nil {
		e.logger.Warn("solve() failed", "error", err)
		return fault(err)
	}

	return stringifyResult(result)
}

func fault(err error) string {
	msg := err.Error()
	if evalErr, ok := err.(*starlark.EvalError); ok {
		msg = evalErr.Msg
	}
	return fmt.Sprintf("[sandbox error: %s]", msg)
}

// lowerAsync rewrites async def / await spellings into their synchronous
// forms. Idempotent.
func lowerAsync(code string) string {
	code = asyncDefPattern.ReplaceAllString(code, "${1}def ")
	return awaitPattern.ReplaceAllString(code, "")
}

// stringifyResult flattens a solve() return value: a dict with a "result"
// key yields that value's string form, other dicts serialize to JSON, lists
// join their elements with spaces, everything else stringifies directly.
func stringifyResult(v starlark.Value) string {
	switch v := v.(type) {
	case *starlark.Dict:
		if result, found, err := v.Get(starlark.String("result")); err == nil && found {
			return stringifyScalar(result)
		}
		if goVal, err := starlarkToGo(v); err == nil {
			if data, err := json.Marshal(goVal); err == nil {
				return string(data)
			}
		}
		return v.String()
	case *starlark.List:
		parts := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts[i] = stringifyScalar(v.Index(i))
		}
		return strings.Join(parts, " ")
	default:
		return stringifyScalar(v)
	}
}

func stringifyScalar(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return v.String()
}
