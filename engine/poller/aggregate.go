package poller

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
)

// aggregate builds the events for one poll according to mode (§4.5 step
// 6), and returns the cursor value the poll should advance to.
func aggregate(mode string, newItems []map[string]any, raw any, rec *automation.Record, cfg pollConfig) ([]queue.Event, string) {
	switch mode {
	case "batch":
		return aggregateBatch(newItems, rec, cfg)
	case "summary":
		return aggregateSummary(newItems, rec, cfg)
	case "latest":
		return aggregateLatest(raw, newItems, rec, cfg)
	default:
		return aggregatePerItem(newItems, rec, cfg)
	}
}

func passesItemFilter(cfg pollConfig, payload map[string]any) bool {
	if cfg.filter == nil {
		return true
	}
	return template.EvaluateCondition(*cfg.filter, payload)
}

func wrapTriggerData(data map[string]any) map[string]any {
	return map[string]any{template.ReservedKeyTriggerData: data}
}

func itemHash(item map[string]any) string {
	data, _ := json.Marshal(item)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func aggregatePerItem(newItems []map[string]any, rec *automation.Record, cfg pollConfig) ([]queue.Event, string) {
	var events []queue.Event
	for _, item := range newItems {
		if !passesItemFilter(cfg, wrapTriggerData(item)) {
			continue
		}
		payload := map[string]any{}
		for k, v := range item {
			payload[k] = v
		}
		payload["type"] = cfg.eventType
		payload["automation_id"] = rec.ID.String()
		events = append(events, queue.Event{
			Service:   cfg.service,
			EventID:   eventIDFor(rec, item),
			OwnerID:   rec.OwnerID,
			EventType: cfg.eventType,
			Data:      payload,
		})
	}
	return events, advanceCursorValue(newItems, rec.LastPollCursor)
}

func eventIDFor(rec *automation.Record, item map[string]any) string {
	if id, ok := item["id"]; ok {
		return fmt.Sprintf("%s:%v", rec.ID, id)
	}
	return fmt.Sprintf("%s:%s", rec.ID, itemHash(item))
}

func aggregateBatch(newItems []map[string]any, rec *automation.Record, cfg pollConfig) ([]queue.Event, string) {
	passing := make([]map[string]any, 0, len(newItems))
	for _, item := range newItems {
		if passesItemFilter(cfg, wrapTriggerData(item)) {
			passing = append(passing, item)
		}
	}
	cursor := advanceCursorValue(newItems, rec.LastPollCursor)
	if len(passing) == 0 {
		return nil, cursor
	}
	items := make([]any, len(passing))
	for i, it := range passing {
		items[i] = it
	}
	data := map[string]any{
		"items":         items,
		"count":         len(passing),
		"_aggregation":  "batch",
		"type":          cfg.eventType,
		"automation_id": rec.ID.String(),
	}
	ev := queue.Event{
		Service:   cfg.service,
		EventID:   fmt.Sprintf("%s:batch:%s", rec.ID, cursor),
		OwnerID:   rec.OwnerID,
		EventType: cfg.eventType,
		Data:      data,
	}
	return []queue.Event{ev}, cursor
}

func aggregateSummary(newItems []map[string]any, rec *automation.Record, cfg pollConfig) ([]queue.Event, string) {
	passing := make([]map[string]any, 0, len(newItems))
	for _, item := range newItems {
		if passesItemFilter(cfg, wrapTriggerData(item)) {
			passing = append(passing, item)
		}
	}
	cursor := advanceCursorValue(newItems, rec.LastPollCursor)
	if len(passing) == 0 {
		return nil, cursor
	}
	stats := numericStats(passing)
	data := map[string]any{
		"stats":         stats,
		"latest":        passing[len(passing)-1],
		"_aggregation":  "summary",
		"type":          cfg.eventType,
		"automation_id": rec.ID.String(),
	}
	ev := queue.Event{
		Service:   cfg.service,
		EventID:   fmt.Sprintf("%s:summary:%s", rec.ID, cursor),
		OwnerID:   rec.OwnerID,
		EventType: cfg.eventType,
		Data:      data,
	}
	return []queue.Event{ev}, cursor
}

// numericStats computes min/max/avg across every numeric field present on
// the first item, scanning the same field across the rest of the set
// (§4.5 step 6, summary mode).
func numericStats(items []map[string]any) map[string]any {
	if len(items) == 0 {
		return map[string]any{}
	}
	fields := make([]string, 0)
	for k, v := range items[0] {
		if _, ok := v.(float64); ok {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		var min, max, sum float64
		count := 0
		for i, item := range items {
			n, ok := item[f].(float64)
			if !ok {
				continue
			}
			if count == 0 {
				min, max = n, n
			} else {
				if n < min {
					min = n
				}
				if n > max {
					max = n
				}
			}
			sum += n
			count++
			_ = i
		}
		if count == 0 {
			continue
		}
		out[f] = map[string]any{"min": min, "max": max, "avg": sum / float64(count)}
	}
	return out
}

// aggregateLatest applies the filter to the raw tool output rather than
// the extracted item, preserving the raw output's top-level shape in the
// emitted event (§4.5 step 6, "latest" / health default).
func aggregateLatest(raw any, newItems []map[string]any, rec *automation.Record, cfg pollConfig) ([]queue.Event, string) {
	cursor := advanceCursorValue(newItems, rec.LastPollCursor)
	if len(newItems) == 0 {
		return nil, cursor
	}
	var payload map[string]any
	switch v := raw.(type) {
	case map[string]any:
		if !passesItemFilter(cfg, wrapTriggerData(v)) {
			return nil, cursor
		}
		payload = map[string]any{}
		for k, val := range v {
			payload[k] = val
		}
	case []any:
		wrapped := map[string]any{"items": v}
		if !passesItemFilter(cfg, wrapTriggerData(wrapped)) {
			return nil, cursor
		}
		payload = map[string]any{"items": v}
	default:
		wrapped := map[string]any{"message": v}
		if !passesItemFilter(cfg, wrapTriggerData(wrapped)) {
			return nil, cursor
		}
		payload = map[string]any{"type": cfg.eventType, "message": v}
	}
	payload["_aggregation"] = "latest"
	payload["automation_id"] = rec.ID.String()
	ev := queue.Event{
		Service:   cfg.service,
		EventID:   fmt.Sprintf("%s:latest:%s", rec.ID, cursor),
		OwnerID:   rec.OwnerID,
		EventType: cfg.eventType,
		Data:      payload,
	}
	return []queue.Event{ev}, cursor
}
