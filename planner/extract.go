package planner

import (
	"regexp"
	"strings"
)

var (
	codeBlockPattern = regexp.MustCompile("(?s)```(?:python)?\\s*\n?(.*?)```")
	solveBodyPattern = regexp.MustCompile(`(?s)(async\s+)?def\s+solve\s*\([^)]*\):.*`)
	solveLinePattern = regexp.MustCompile(`(?m)^\s*(async\s+)?def\s+solve\s*\(`)
	returnPattern    = regexp.MustCompile(`(?m)return\s+[^\n]+`)
)

// IsPlan reports whether text contains a solve() entry-point definition.
// This is the structural validity check the agent loop applies before
// dispatching a plan.
func IsPlan(text string) bool {
	return solveLinePattern.MatchString(text)
}

// ExtractPlan pulls a solve() definition out of raw model output: strip a
// fenced code block if present, discard prose before the definition, and
// truncate after the last return statement. When no definition can be found
// anywhere, the raw text comes back unchanged so structural validation stays
// the final authority. Idempotent.
func ExtractPlan(raw string) string {
	original := strings.TrimSpace(raw)

	code := original
	if m := codeBlockPattern.FindStringSubmatch(original); m != nil {
		code = strings.TrimSpace(m[1])
	}

	if m := solveBodyPattern.FindString(code); m != "" {
		code = m
	} else if m := solveBodyPattern.FindString(original); m != "" {
		code = m
	} else {
		return original
	}

	// Drop any remaining lines before the definition.
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if solveLinePattern.MatchString(line) {
			code = strings.Join(lines[i:], "\n")
			break
		}
	}

	// Trailing prose after the last return is not part of the plan.
	if locs := returnPattern.FindAllStringIndex(code, -1); locs != nil {
		code = code[:locs[len(locs)-1][1]]
	}

	if !IsPlan(code) {
		return original
	}
	return strings.TrimSpace(code)
}
