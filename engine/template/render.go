// Package template implements the engine's template and condition grammar
// (component C1): `{{dotted.path}}` interpolation with no control flow, and
// the recursive clause/group condition DSL evaluated against an execution
// context built from trigger data, user info, action outputs, and variables.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// tokenRe matches a single `{{EXPR}}` occurrence. EXPR is trimmed of
// surrounding whitespace before path resolution; the grammar has no
// control-flow blocks or pipes, so a plain non-greedy match is sufficient.
var tokenRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Undefined is the sentinel returned for a whole-value template that
// resolves to no value at all (§4.1: "pass through as the language-native
// 'no value' marker"). ResolveParams drops keys whose resolved value is
// Undefined so the tool sees an absent parameter rather than an empty
// string.
type undefinedType struct{}

// Undefined is the unique "no value" marker.
var Undefined = undefinedType{}

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

// Evaluate renders a single string template against ctx.
//
//   - A string with no `{{...}}` tokens is returned unchanged.
//   - A string that is *entirely* one token (no surrounding literal text)
//     resolves to the raw context value, preserving its type (object, array,
//     number, bool). If the path is unresolved, it resolves to Undefined.
//   - A string with literal text and/or multiple tokens is interpolated:
//     each token's resolved value is stringified (non-scalars as JSON, an
//     unresolved path as the empty string) and substituted in place.
func Evaluate(raw string, ctx map[string]any) (any, error) {
	matches := tokenRe.FindAllStringSubmatchIndex(raw, -1)
	if matches == nil {
		return raw, nil
	}
	if isWholeValueTemplate(raw, matches) {
		path := raw[matches[0][2]:matches[0][3]]
		val, ok := resolvePath(ctx, strings.TrimSpace(path))
		if !ok {
			return Undefined, nil
		}
		return val, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end, pathStart, pathEnd := m[0], m[1], m[2], m[3]
		b.WriteString(raw[last:start])
		val, ok := resolvePath(ctx, strings.TrimSpace(raw[pathStart:pathEnd]))
		if !ok {
			last = end
			continue
		}
		b.WriteString(stringify(val))
		last = end
	}
	b.WriteString(raw[last:])
	return b.String(), nil
}

// isWholeValueTemplate reports whether raw consists of exactly one token
// with no surrounding literal characters.
func isWholeValueTemplate(raw string, matches [][]int) bool {
	if len(matches) != 1 {
		return false
	}
	return matches[0][0] == 0 && matches[0][1] == len(raw)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// resolvePath resolves a dotted path directly against ctx (no trigger_data
// prefix fallback — that rule is specific to condition evaluation, §4.1).
func resolvePath(ctx map[string]any, path string) (any, bool) {
	v, ok := core.NewValue(ctx).Get(path)
	if !ok {
		return nil, false
	}
	return v.Raw(), true
}

// ResolveParams recursively resolves templates in a parameter tree: strings
// are templated via Evaluate, maps and slices are walked, everything else
// passes through unchanged. A key whose value resolves to Undefined is
// omitted entirely from the returned map.
func ResolveParams(params map[string]any, ctx map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		resolved, undefined, err := resolveAny(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve parameter %q: %w", k, err)
		}
		if undefined {
			continue
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveAny(v any, ctx map[string]any) (any, bool, error) {
	switch t := v.(type) {
	case string:
		val, err := Evaluate(t, ctx)
		if err != nil {
			return nil, false, err
		}
		if IsUndefined(val) {
			return nil, true, nil
		}
		return val, false, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			resolved, undefined, err := resolveAny(vv, ctx)
			if err != nil {
				return nil, false, fmt.Errorf("%s: %w", k, err)
			}
			if undefined {
				continue
			}
			out[k] = resolved
		}
		return out, false, nil
	case []any:
		out := make([]any, 0, len(t))
		for _, vv := range t {
			resolved, undefined, err := resolveAny(vv, ctx)
			if err != nil {
				return nil, false, err
			}
			if undefined {
				out = append(out, nil)
				continue
			}
			out = append(out, resolved)
		}
		return out, false, nil
	default:
		return v, false, nil
	}
}
