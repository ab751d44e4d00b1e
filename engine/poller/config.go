package poller

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
)

func decodeCondition(v any) (template.Condition, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return template.Condition{}, err
	}
	var cond template.Condition
	if err := json.Unmarshal(data, &cond); err != nil {
		return template.Condition{}, err
	}
	return cond, nil
}

// pollConfig is the decoded shape of a polling automation's trigger_config
// (§6: `{service, source_tool, event_type, tool_params{}, filter?,
// aggregation_mode?, polling_interval_minutes?}`).
type pollConfig struct {
	service          string
	sourceTool       string
	eventType        string
	toolParams       map[string]any
	filter           *template.Condition
	aggregationMode  string
}

func parseTriggerConfig(raw map[string]any) (pollConfig, error) {
	sourceTool, _ := raw["source_tool"].(string)
	if sourceTool == "" {
		return pollConfig{}, fmt.Errorf("poller: trigger_config missing source_tool")
	}
	cfg := pollConfig{
		sourceTool:      sourceTool,
		service:         stringField(raw, "service"),
		eventType:       stringField(raw, "event_type"),
		aggregationMode: stringField(raw, "aggregation_mode"),
	}
	if params, ok := raw["tool_params"].(map[string]any); ok {
		cfg.toolParams = params
	}
	if rawFilter, ok := raw["filter"]; ok {
		cond, err := decodeCondition(rawFilter)
		if err == nil {
			cfg.filter = &cond
		}
	}
	return cfg, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// materializeParams resolves tool_params templates, substituting
// last_poll_cursor for {{last_cursor}} (defaulting to yesterday), and
// defaulting start_date/end_date from the cursor and today when the tool
// name suggests a health/fitness source (§4.5 step 2).
func materializeParams(cfg pollConfig, lastCursor string, now time.Time) map[string]any {
	cursor := lastCursor
	if cursor == "" {
		cursor = now.Add(-24 * time.Hour).Format("2006-01-02")
	}
	ctx := map[string]any{
		"today":       now.Format("2006-01-02"),
		"yesterday":   now.Add(-24 * time.Hour).Format("2006-01-02"),
		"last_cursor": cursor,
	}
	out := make(map[string]any, len(cfg.toolParams)+2)
	for k, v := range cfg.toolParams {
		out[k] = resolveParamValue(v, ctx)
	}
	if looksLikeHealthTool(cfg.sourceTool) {
		if _, ok := out["start_date"]; !ok {
			out["start_date"] = cursor
		}
		if _, ok := out["end_date"]; !ok {
			out["end_date"] = now.Format("2006-01-02")
		}
	}
	return out
}

func resolveParamValue(v any, ctx map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	resolved, err := template.Evaluate(s, ctx)
	if err != nil {
		return s
	}
	if template.IsUndefined(resolved) {
		return v
	}
	return resolved
}

func looksLikeHealthTool(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"sleep", "fitness", "health", "activity", "heart", "oura", "fitbit", "workout"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
