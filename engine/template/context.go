package template

import (
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
)

// Reserved context keys that `output_as` names must never collide with
// (data model invariant 4).
const (
	ReservedKeyUser        = "user"
	ReservedKeyTriggerData = "trigger_data"
)

// IsReservedKey reports whether name collides with a reserved context key.
func IsReservedKey(name string) bool {
	return name == ReservedKeyUser || name == ReservedKeyTriggerData
}

// BuildContext assembles the execution context per §4.1's context layout:
// trigger_data spread at the root, the reserved `user` and `trigger_data`
// keys, built-in date/time variables, and the caller-supplied variables.
// Output bindings accumulate incrementally as the action executor runs, so
// they are merged in by the caller via WithOutput rather than here.
func BuildContext(triggerData map[string]any, user core.UserInfo, variables map[string]any, at time.Time) map[string]any {
	ctx := make(map[string]any, len(triggerData)+len(variables)+4)
	for k, v := range triggerData {
		ctx[k] = v
	}
	for k, v := range variables {
		ctx[k] = v
	}
	for k, v := range core.BuiltinTimeVars(at, user.Location()) {
		ctx[k] = v
	}
	ctx[ReservedKeyUser] = user.AsMap()
	ctx[ReservedKeyTriggerData] = triggerData
	return ctx
}

// WithOutput returns a shallow copy of ctx with name bound to value — the
// action executor calls this after each successful action that declares
// `output_as`. Panicking on a reserved-key collision is the caller's job
// (the executor validates names before dispatch); this helper simply binds.
func WithOutput(ctx map[string]any, name string, value any) map[string]any {
	out := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		out[k] = v
	}
	out[name] = value
	return out
}
