package sandbox

import (
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// reModule exposes pattern matching to plans. search scans the whole text and
// match anchors at the start; both return the matched text, or None when
// nothing matches. findall follows the grouping convention: full matches
// without capture groups, the group text with one, tuples with several.
func reModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "re",
		Members: starlark.StringDict{
			"search":  starlark.NewBuiltin("search", reSearch),
			"match":   starlark.NewBuiltin("match", reMatch),
			"findall": starlark.NewBuiltin("findall", reFindall),
		},
	}
}

func unpackPatternArgs(fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (*regexp.Regexp, string, error) {
	var pattern, text string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &pattern, &text); err != nil {
		return nil, "", err
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, "", fmt.Errorf("%s: invalid pattern %q: %w", fn.Name(), pattern, err)
	}
	return rx, text, nil
}

func reSearch(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	rx, text, err := unpackPatternArgs(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	if loc := rx.FindStringIndex(text); loc != nil {
		return starlark.String(text[loc[0]:loc[1]]), nil
	}
	return starlark.None, nil
}

func reMatch(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	rx, text, err := unpackPatternArgs(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	// The leftmost match starting past position zero means nothing matches
	// at the start.
	if loc := rx.FindStringIndex(text); loc != nil && loc[0] == 0 {
		return starlark.String(text[:loc[1]]), nil
	}
	return starlark.None, nil
}

func reFindall(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	rx, text, err := unpackPatternArgs(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	var elems []starlark.Value
	for _, m := range rx.FindAllStringSubmatch(text, -1) {
		switch rx.NumSubexp() {
		case 0:
			elems = append(elems, starlark.String(m[0]))
		case 1:
			elems = append(elems, starlark.String(m[1]))
		default:
			groups := make(starlark.Tuple, len(m)-1)
			for i := 1; i < len(m); i++ {
				groups[i-1] = starlark.String(m[i])
			}
			elems = append(elems, groups)
		}
	}
	return starlark.NewList(elems), nil
}
