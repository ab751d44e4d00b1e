package webhook

import (
	"encoding/json"
	"strings"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
)

// matchesService reports whether r is a webhook automation bound to
// service (case-insensitive), with an optional event_type/event_types
// match (§6: trigger_config carries either the singular or plural form).
func matchesService(r *automation.Record, service, eventType string) bool {
	if r.TriggerType != automation.TriggerWebhook {
		return false
	}
	cfgService, _ := r.TriggerConfig["service"].(string)
	if !strings.EqualFold(cfgService, service) {
		return false
	}
	if cfgEventType, _ := r.TriggerConfig["event_type"].(string); cfgEventType != "" {
		return strings.EqualFold(cfgEventType, eventType)
	}
	if rawTypes, ok := r.TriggerConfig["event_types"].([]any); ok && len(rawTypes) > 0 {
		for _, t := range rawTypes {
			if s, ok := t.(string); ok && strings.EqualFold(s, eventType) {
				return true
			}
		}
		return false
	}
	return true
}

// passesFilter evaluates r's trigger_config.filter (a single Condition) or
// trigger_config.filters (a list of Conditions, all required) against the
// wrapped payload. An automation with neither key passes unconditionally.
func passesFilter(r *automation.Record, payload map[string]any) bool {
	if single, ok := r.TriggerConfig["filter"]; ok {
		cond, err := decodeCondition(single)
		if err != nil {
			return true
		}
		return template.EvaluateCondition(cond, payload)
	}
	if list, ok := r.TriggerConfig["filters"]; ok {
		raw, ok := list.([]any)
		if !ok {
			return true
		}
		for _, item := range raw {
			cond, err := decodeCondition(item)
			if err != nil {
				continue
			}
			if !template.EvaluateCondition(cond, payload) {
				return false
			}
		}
		return true
	}
	return true
}

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

// automationSideFilter implements §4.4 step 7: an event is enqueued if at
// least one matching automation's filter passes, or if no automation
// matches the service/event_type at all (loss-free default).
func automationSideFilter(candidates []*automation.Record, ev Event) bool {
	payload := map[string]any{template.ReservedKeyTriggerData: ev.Data}
	matched := false
	for _, r := range candidates {
		if !matchesService(r, ev.Service, ev.EventType) {
			continue
		}
		matched = true
		if passesFilter(r, payload) {
			return true
		}
	}
	return !matched
}

// MatchingAutomations narrows candidates to the ones bound to
// (service, eventType) whose trigger_config filter passes data, for a
// queue consumer re-resolving which automations an already-enqueued
// webhook event belongs to.
func MatchingAutomations(
	candidates []*automation.Record,
	service, eventType string,
	data map[string]any,
) []*automation.Record {
	payload := map[string]any{template.ReservedKeyTriggerData: data}
	var matches []*automation.Record
	for _, r := range candidates {
		if !matchesService(r, service, eventType) {
			continue
		}
		if passesFilter(r, payload) {
			matches = append(matches, r)
		}
	}
	return matches
}

// microsoftFilter drops change notifications that only report a
// flag/read-state change (§4.4 step 6).
func microsoftFilter(data map[string]any) bool {
	changeType, _ := data["change_type"].(string)
	return changeType != "updated"
}
