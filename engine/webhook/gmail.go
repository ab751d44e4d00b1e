package webhook

import "context"

// GmailHistoryClient fetches the message ids a Gmail history notification
// actually implies (§4.4 step 5) — Gmail's own webhook payload carries only
// an opaque history_id, never the message itself.
type GmailHistoryClient interface {
	// HistoryDelta returns the new message ids since cursor, and the cursor
	// to store for next time.
	HistoryDelta(ctx context.Context, ownerID, emailAddress, cursor string) (messageIDs []string, nextCursor string, err error)
}

// gmailCursorStore persists the per-owner Gmail history cursor across
// deliveries; a real deployment backs this with the automation record or a
// dedicated table, kept here as the minimal surface this package needs.
type gmailCursorStore interface {
	GetCursor(ctx context.Context, ownerID string) (string, error)
	SetCursor(ctx context.Context, ownerID, cursor string) error
}

// resolveGmailEvents implements the two-phase filter: it calls the history
// delta, and on failure degrades to enqueue-through with the single
// envelope event rather than silently dropping it (§4.4 step 5: "prefer
// loss-free behavior").
func resolveGmailEvents(
	ctx context.Context,
	client GmailHistoryClient,
	cursors gmailCursorStore,
	ownerID, emailAddress string,
	envelope parsed,
) []parsed {
	if client == nil {
		return []parsed{envelope}
	}
	cursor := ""
	if cursors != nil {
		cursor, _ = cursors.GetCursor(ctx, ownerID)
	}
	ids, next, err := client.HistoryDelta(ctx, ownerID, emailAddress, cursor)
	if err != nil {
		return []parsed{envelope}
	}
	if cursors != nil && next != "" {
		_ = cursors.SetCursor(ctx, ownerID, next)
	}
	if len(ids) == 0 {
		return nil
	}
	events := make([]parsed, 0, len(ids))
	for _, id := range ids {
		events = append(events, parsed{
			ExternalID: emailAddress,
			EventType:  "message",
			EventID:    id,
			Data: map[string]any{
				"email_address": emailAddress,
				"message_id":    id,
			},
		})
	}
	return events
}
