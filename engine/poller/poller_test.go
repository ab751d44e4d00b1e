package poller

import (
	"context"
	"testing"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
	"github.com/SimbaBuilds/NL-To-Automation/engine/toolregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	due     []*automation.Record
	byID    map[core.ID]*automation.Record
	cursors map[core.ID]string
	nextAt  map[core.ID]time.Time
}

func newFakeStore(recs ...*automation.Record) *fakeStore {
	s := &fakeStore{byID: map[core.ID]*automation.Record{}, cursors: map[core.ID]string{}, nextAt: map[core.ID]time.Time{}}
	for _, r := range recs {
		s.due = append(s.due, r)
		s.byID[r.ID] = r
	}
	return s
}

func (s *fakeStore) ListDuePolling(context.Context, time.Time) ([]*automation.Record, error) { return s.due, nil }
func (s *fakeStore) Get(_ context.Context, id core.ID) (*automation.Record, error)            { return s.byID[id], nil }
func (s *fakeStore) AdvanceCursor(_ context.Context, id core.ID, cursor string, next time.Time) error {
	s.cursors[id] = cursor
	s.nextAt[id] = next
	return nil
}

type fakeRegistry struct {
	result any
	err    error
	tags   map[string][]string
}

func (f *fakeRegistry) GetByName(_ context.Context, name string) (toolregistry.Descriptor, error) {
	return toolregistry.Descriptor{Name: name, Tags: f.tags[name]}, nil
}

func (f *fakeRegistry) Execute(context.Context, string, map[string]any, core.ID, toolregistry.ExecuteOptions) (any, error) {
	return f.result, f.err
}

type fakeQueue struct {
	events []queue.Event
}

func (f *fakeQueue) Enqueue(_ context.Context, ev queue.Event) (bool, error) {
	f.events = append(f.events, ev)
	return true, nil
}

func newRecord(id core.ID, triggerConfig map[string]any) *automation.Record {
	return &automation.Record{
		ID:            id,
		OwnerID:       core.ID("owner-1"),
		Active:        true,
		Status:        automation.StatusActive,
		TriggerType:   automation.TriggerPolling,
		TriggerConfig: triggerConfig,
	}
}

func TestPoller_Tick_PerItemMode(t *testing.T) {
	t.Run("Should enqueue one event per new item and advance the cursor", func(t *testing.T) {
		rec := newRecord(core.MustNewID(), map[string]any{
			"service":     "slack",
			"source_tool": "slack_messages",
			"event_type":  "message",
		})
		reg := &fakeRegistry{result: map[string]any{
			"data": []any{
				map[string]any{"id": "1", "ts": 100.0},
				map[string]any{"id": "2", "ts": 200.0},
			},
		}}
		store := newFakeStore(rec)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		err := p.Tick(context.Background())
		require.NoError(t, err)
		assert.Len(t, q.events, 2)
		assert.Equal(t, "200", store.cursors[rec.ID])
		assert.True(t, store.nextAt[rec.ID].After(time.Now()))
	})

	t.Run("Should advance next_poll_at and emit no events when the source tool fails", func(t *testing.T) {
		rec := newRecord(core.MustNewID(), map[string]any{
			"service":     "slack",
			"source_tool": "slack_messages",
			"event_type":  "message",
		})
		reg := &fakeRegistry{err: assertErrFixture()}
		store := newFakeStore(rec)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		err := p.Tick(context.Background())
		require.NoError(t, err)
		assert.Empty(t, q.events)
		_, advanced := store.nextAt[rec.ID]
		assert.True(t, advanced)
	})
}

func TestPoller_TickCategory(t *testing.T) {
	t.Run("Should poll only automations whose service matches the category", func(t *testing.T) {
		oura := newRecord(core.MustNewID(), map[string]any{
			"service": "oura", "source_tool": "oura_sleep", "event_type": "sleep",
		})
		slack := newRecord(core.MustNewID(), map[string]any{
			"service": "slack", "source_tool": "slack_messages", "event_type": "message",
		})
		reg := &fakeRegistry{result: map[string]any{"data": []any{map[string]any{"id": "1", "ts": 1.0}}}}
		store := newFakeStore(oura, slack)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		err := p.TickCategory(context.Background(), "oura")
		require.NoError(t, err)
		_, ouraPolled := store.nextAt[oura.ID]
		_, slackPolled := store.nextAt[slack.ID]
		assert.True(t, ouraPolled)
		assert.False(t, slackPolled)
	})

	t.Run("Should fall back to a full tick when category is empty", func(t *testing.T) {
		rec := newRecord(core.MustNewID(), map[string]any{
			"service": "slack", "source_tool": "slack_messages", "event_type": "message",
		})
		reg := &fakeRegistry{result: map[string]any{"data": []any{}}}
		store := newFakeStore(rec)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		err := p.TickCategory(context.Background(), "")
		require.NoError(t, err)
		_, polled := store.nextAt[rec.ID]
		assert.True(t, polled)
	})
}

func TestPoller_Classifier(t *testing.T) {
	t.Run("Should expose a classifier whose invalidation clears a memoized tag", func(t *testing.T) {
		reg := &fakeRegistry{}
		p := New(newFakeStore(), reg, &fakeQueue{}, nil, Options{})
		classifier := p.Classifier()
		require.NotNil(t, classifier)
		classifier.Store("oura_sleep", true)
		v, ok := classifier.Lookup("oura_sleep")
		assert.True(t, ok)
		assert.True(t, v)
		classifier.Invalidate("oura_sleep")
		_, ok = classifier.Lookup("oura_sleep")
		assert.False(t, ok)
	})
}

func TestPoller_AggregationModes(t *testing.T) {
	t.Run("Should use batch mode when explicitly configured", func(t *testing.T) {
		rec := newRecord(core.MustNewID(), map[string]any{
			"service":          "todoist",
			"source_tool":      "todoist_tasks",
			"event_type":       "task",
			"aggregation_mode": "batch",
		})
		reg := &fakeRegistry{result: map[string]any{
			"tasks": []any{
				map[string]any{"id": "1", "date": "2026-07-29"},
				map[string]any{"id": "2", "date": "2026-07-30"},
			},
		}}
		store := newFakeStore(rec)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		require.NoError(t, p.Tick(context.Background()))
		require.Len(t, q.events, 1)
		assert.Equal(t, 2, q.events[0].Data["count"])
	})

	t.Run("Should default health-tagged tools to latest mode", func(t *testing.T) {
		rec := newRecord(core.MustNewID(), map[string]any{
			"service":     "oura",
			"source_tool": "oura_sleep",
			"event_type":  "sleep",
		})
		reg := &fakeRegistry{
			tags:   map[string][]string{"oura_sleep": {"Health and Wellness"}},
			result: map[string]any{"sleep": []any{map[string]any{"id": "1", "date": "2026-07-30", "score": 85.0}}},
		}
		store := newFakeStore(rec)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		require.NoError(t, p.Tick(context.Background()))
		require.Len(t, q.events, 1)
		assert.Equal(t, "latest", q.events[0].Data["_aggregation"])
	})

	t.Run("Should default non-health tools to per_item mode", func(t *testing.T) {
		rec := newRecord(core.MustNewID(), map[string]any{
			"service":     "todoist",
			"source_tool": "todoist_tasks",
			"event_type":  "task",
		})
		reg := &fakeRegistry{result: map[string]any{
			"tasks": []any{map[string]any{"id": "1", "date": "2026-07-30"}},
		}}
		store := newFakeStore(rec)
		q := &fakeQueue{}
		p := New(store, reg, q, nil, Options{})

		require.NoError(t, p.Tick(context.Background()))
		require.Len(t, q.events, 1)
		_, hasAgg := q.events[0].Data["_aggregation"]
		assert.False(t, hasAgg)
	})
}

func TestCompareCursors(t *testing.T) {
	t.Run("Should compare numeric timestamps as floats", func(t *testing.T) {
		assert.Equal(t, 1, compareCursors("200.5", "100.25"))
		assert.Equal(t, -1, compareCursors("50", "100"))
	})

	t.Run("Should compare ISO dates lexicographically", func(t *testing.T) {
		assert.Equal(t, 1, compareCursors("2026-08-01", "2026-07-30"))
	})

	t.Run("Should parse RFC 2822 weekday-prefixed dates before comparing", func(t *testing.T) {
		older := "Mon, 02 Jan 2006 15:04:05 -0700"
		newer := "Wed, 04 Jan 2006 15:04:05 -0700"
		assert.Equal(t, 1, compareCursors(newer, older))
	})
}

func TestExtractItems(t *testing.T) {
	t.Run("Should probe known array shells", func(t *testing.T) {
		items := extractItems(map[string]any{"events": []any{map[string]any{"id": "1"}}})
		assert.Len(t, items, 1)
	})

	t.Run("Should wrap a summary object as a singleton", func(t *testing.T) {
		items := extractItems(map[string]any{"summary": map[string]any{"total": 3.0}})
		require.Len(t, items, 1)
		assert.Equal(t, 3.0, items[0]["total"])
	})

	t.Run("Should wrap a bare scalar output", func(t *testing.T) {
		items := extractItems("done")
		require.Len(t, items, 1)
		assert.Equal(t, "done", items[0]["message"])
	})
}

func assertErrFixture() error { return context.DeadlineExceeded }
