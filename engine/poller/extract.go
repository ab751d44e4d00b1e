package poller

// extractItems probes raw for one of the well-known array shells, falling
// back to singleton-wrapping a summary object, passing an already-array
// output through, or wrapping a bare scalar (§4.5 step 4).
func extractItems(raw any) []map[string]any {
	switch v := raw.(type) {
	case []any:
		return toItemSlice(v)
	case map[string]any:
		for _, key := range []string{"data", "items", "files", "events", "tasks", "sleep"} {
			if nested, ok := v[key]; ok {
				if arr, ok := nested.([]any); ok {
					return toItemSlice(arr)
				}
			}
		}
		if summary, ok := v["summary"]; ok {
			if obj, ok := summary.(map[string]any); ok {
				return []map[string]any{obj}
			}
		}
		return []map[string]any{v}
	default:
		return []map[string]any{{"message": raw}}
	}
}

func toItemSlice(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
			continue
		}
		out = append(out, map[string]any{"message": item})
	}
	return out
}

// dateFields are probed in order to find an item's comparable timestamp.
var dateFields = []string{"date", "timestamp", "created_at", "updated_at", "ts", "time", "completed_at"}

func itemDate(item map[string]any) (string, bool) {
	for _, f := range dateFields {
		if v, ok := item[f]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s, true
				}
			case float64:
				return formatFloatCursor(s), true
			}
		}
	}
	return "", false
}
