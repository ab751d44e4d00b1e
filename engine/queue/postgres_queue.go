package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/cache"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/postgres"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// dedupCacheTTL bounds how long the fast-path Redis dedup entry survives —
// long enough to absorb a webhook retry burst, short enough that a stuck
// entry self-heals without operator intervention.
const dedupCacheTTL = 10 * time.Minute

// PostgresQueue is the durable event queue (§4.3), backed by a Postgres
// table with the (service, event_id, owner_id) uniqueness constraint and
// fronted by an optional Redis fast-path dedup cache so that a burst of
// duplicate webhook deliveries doesn't round-trip to Postgres for every
// copy.
type PostgresQueue struct {
	db    postgres.DB
	dedup cache.KV
}

// New builds a PostgresQueue. dedup may be nil to skip the fast-path cache
// and rely solely on the database's unique constraint.
func New(db postgres.DB, dedup cache.KV) *PostgresQueue {
	return &PostgresQueue{db: db, dedup: dedup}
}

func dedupCacheKey(k Key) string {
	return fmt.Sprintf("queue:dedup:%s:%s:%s", k.Service, k.EventID, k.OwnerID)
}

// Enqueue inserts ev, returning enqueued=false (and a nil error) when the
// (service, event_id, owner_id) tuple was already present — a duplicate
// insert is swallowed and reported as success, never as an error.
func (q *PostgresQueue) Enqueue(ctx context.Context, ev Event) (bool, error) {
	key := Key{Service: ev.Service, EventID: ev.EventID, OwnerID: ev.OwnerID}
	if q.dedup != nil {
		if _, err := q.dedup.Get(ctx, dedupCacheKey(key)); err == nil {
			return false, nil
		}
	}

	if ev.ID.IsZero() {
		id, err := core.NewID()
		if err != nil {
			return false, fmt.Errorf("generate event id: %w", err)
		}
		ev.ID = id
	}
	data, err := postgres.ToJSONB(ev.Data)
	if err != nil {
		return false, fmt.Errorf("marshal event data: %w", err)
	}

	sql, args, err := squirrel.Insert("events").
		Columns("id", "service", "event_id", "owner_id", "event_type", "data", "processed", "retry_count").
		Values(ev.ID, ev.Service, ev.EventID, ev.OwnerID, ev.EventType, data, false, 0).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert query: %w", err)
	}

	_, err = q.db.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			q.rememberDedup(ctx, key)
			return false, nil
		}
		return false, fmt.Errorf("insert event: %w", err)
	}

	q.rememberDedup(ctx, key)
	return true, nil
}

func (q *PostgresQueue) rememberDedup(ctx context.Context, key Key) {
	if q.dedup == nil {
		return
	}
	if err := q.dedup.Set(ctx, dedupCacheKey(key), "1", dedupCacheTTL); err != nil {
		logger.FromContext(ctx).Debug("queue dedup cache write failed", "error", err)
	}
}

type eventRow struct {
	ID         core.ID   `db:"id"`
	Service    string    `db:"service"`
	EventID    string    `db:"event_id"`
	OwnerID    core.ID   `db:"owner_id"`
	EventType  string    `db:"event_type"`
	Data       []byte    `db:"data"`
	Processed  bool      `db:"processed"`
	RetryCount int       `db:"retry_count"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r eventRow) toEvent() (Event, error) {
	var data map[string]any
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return Event{}, fmt.Errorf("decode event data: %w", err)
		}
	}
	return Event{
		ID:         r.ID,
		Service:    r.Service,
		EventID:    r.EventID,
		OwnerID:    r.OwnerID,
		EventType:  r.EventType,
		Data:       data,
		Processed:  r.Processed,
		RetryCount: r.RetryCount,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

// ClaimBatch atomically claims up to limit unprocessed events, marking
// them processed within the same transaction so that two concurrent
// dispatchers never claim the same row (§4.3 "A separate consumer ...
// claims unprocessed events").
func (q *PostgresQueue) ClaimBatch(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 1
	}
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const query = `
		UPDATE events SET processed = true, updated_at = now()
		WHERE id IN (
			SELECT id FROM events WHERE processed = false
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, service, event_id, owner_id, event_type, data, processed, retry_count, created_at, updated_at`

	var rows []eventRow
	if err := pgxscan.Select(ctx, tx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("claim events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim transaction: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// MarkFailed increments an event's retry count after a failed dispatch
// attempt; the event remains claimed (processed=true) since the queue
// does not retry automatically — retries are the dispatcher's concern.
func (q *PostgresQueue) MarkFailed(ctx context.Context, id core.ID) error {
	_, err := q.db.Exec(ctx, `UPDATE events SET retry_count = retry_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}
