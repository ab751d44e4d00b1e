package webhook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// parsed is what a per-service parser extracts from a raw body before
// tenant resolution fills in the internal owner id.
type parsed struct {
	ExternalID string
	EventType  string
	EventID    string
	Data       map[string]any
}

type parserFunc func(body []byte) (parsed, error)

var parsers = map[string]parserFunc{
	"slack":     parseSlack,
	"notion":    parseNotion,
	"fitbit":    parseFitbit,
	"todoist":   parseTodoist,
	"microsoft": parseMicrosoft,
	"gmail":     parseGmail,
}

func toMap(body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("webhook parse: invalid JSON body: %w", err)
	}
	return m, nil
}

func parseSlack(body []byte) (parsed, error) {
	data, err := toMap(body)
	if err != nil {
		return parsed{}, err
	}
	eventID := gjson.GetBytes(body, "event_id").String()
	if eventID == "" {
		eventID = gjson.GetBytes(body, "event.ts").String()
	}
	return parsed{
		ExternalID: gjson.GetBytes(body, "team_id").String(),
		EventType:  gjson.GetBytes(body, "event.type").String(),
		EventID:    eventID,
		Data:       data,
	}, nil
}

func parseNotion(body []byte) (parsed, error) {
	data, err := toMap(body)
	if err != nil {
		return parsed{}, err
	}
	return parsed{
		ExternalID: gjson.GetBytes(body, "workspace.id").String(),
		EventType:  gjson.GetBytes(body, "type").String(),
		EventID:    gjson.GetBytes(body, "id").String(),
		Data:       data,
	}, nil
}

func parseFitbit(body []byte) (parsed, error) {
	// Fitbit delivers an array of notification objects sharing one ownerId.
	results := gjson.ParseBytes(body).Array()
	if len(results) == 0 {
		return parsed{}, fmt.Errorf("webhook parse: empty Fitbit notification array")
	}
	first := results[0]
	data, err := toMap(body)
	if err != nil {
		data = map[string]any{"notifications": json.RawMessage(body)}
	}
	return parsed{
		ExternalID: first.Get("ownerId").String(),
		EventType:  first.Get("collectionType").String(),
		EventID:    first.Get("ownerId").String() + ":" + first.Get("date").String(),
		Data:       data,
	}, nil
}

func parseTodoist(body []byte) (parsed, error) {
	data, err := toMap(body)
	if err != nil {
		return parsed{}, err
	}
	return parsed{
		ExternalID: gjson.GetBytes(body, "user_id").String(),
		EventType:  gjson.GetBytes(body, "event_name").String(),
		EventID:    gjson.GetBytes(body, "event_data.id").String(),
		Data:       data,
	}, nil
}

func parseMicrosoft(body []byte) (parsed, error) {
	// Graph batches notifications under "value"; this engine handles one
	// subscription's worth per delivery, so the first entry is authoritative.
	notifications := gjson.GetBytes(body, "value").Array()
	if len(notifications) == 0 {
		return parsed{}, fmt.Errorf("webhook parse: empty Microsoft Graph notification")
	}
	n := notifications[0]
	data, err := toMap(body)
	if err != nil {
		return parsed{}, err
	}
	return parsed{
		ExternalID: n.Get("clientState").String(),
		EventType:  n.Get("changeType").String(),
		EventID:    n.Get("resourceData.id").String(),
		Data: map[string]any{
			"change_type": n.Get("changeType").String(),
			"resource":    n.Get("resource").String(),
			"raw":         data,
		},
	}, nil
}

func parseGmail(body []byte) (parsed, error) {
	encoded := gjson.GetBytes(body, "message.data").String()
	if encoded == "" {
		return parsed{}, fmt.Errorf("webhook parse: missing Pub/Sub message.data")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return parsed{}, fmt.Errorf("webhook parse: invalid base64 Pub/Sub envelope: %w", err)
	}
	var envelope struct {
		EmailAddress string `json:"emailAddress"`
		HistoryID    any    `json:"historyId"`
	}
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return parsed{}, fmt.Errorf("webhook parse: invalid Pub/Sub envelope JSON: %w", err)
	}
	return parsed{
		ExternalID: envelope.EmailAddress,
		EventType:  "message",
		EventID:    gjson.GetBytes(body, "message.messageId").String(),
		Data: map[string]any{
			"email_address": envelope.EmailAddress,
			"history_id":    envelope.HistoryID,
		},
	}, nil
}
