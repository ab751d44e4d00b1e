package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(api *API) http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, api)
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type fakeScheduler struct {
	tickBucket string
	tickErr    error
	forceRunID core.ID
	forceErr   error
}

func (f *fakeScheduler) Tick(_ context.Context, bucket string) error {
	f.tickBucket = bucket
	return f.tickErr
}

func (f *fakeScheduler) ForceRun(_ context.Context, id core.ID) error {
	f.forceRunID = id
	return f.forceErr
}

type fakePoller struct {
	tickCalled  bool
	category    string
	forcePollID core.ID
	err         error
}

func (f *fakePoller) Tick(context.Context) error {
	f.tickCalled = true
	return f.err
}

func (f *fakePoller) TickCategory(_ context.Context, category string) error {
	f.category = category
	return f.err
}

func (f *fakePoller) ForcePoll(_ context.Context, id core.ID) error {
	f.forcePollID = id
	return f.err
}

type fakeDispatcher struct {
	log *executor.ExecutionLog
	err error
}

func (f *fakeDispatcher) Execute(
	context.Context,
	*automation.Record,
	automation.TriggerType,
	map[string]any,
	core.UserInfo,
) (*executor.ExecutionLog, error) {
	return f.log, f.err
}

type fakeAutomations struct {
	records map[core.ID]*automation.Record
}

func (f *fakeAutomations) Get(_ context.Context, id core.ID) (*automation.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

type fakeUsers struct {
	info core.UserInfo
}

func (f *fakeUsers) Get(context.Context, core.ID) (core.UserInfo, error) {
	return f.info, nil
}

type fakeScheduledStore struct {
	records []*automation.Record
}

func (f *fakeScheduledStore) ListScheduledByBucket(_ context.Context, bucket string) ([]*automation.Record, error) {
	var out []*automation.Record
	for _, rec := range f.records {
		if stringField(rec.TriggerConfig, "interval") == bucket {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeScheduledStore) Get(context.Context, core.ID) (*automation.Record, error) {
	return nil, errors.New("unused")
}

func (f *fakeScheduledStore) Deactivate(context.Context, core.ID) error { return nil }

type fakeLogStore struct{}

func (fakeLogStore) LastScheduledRun(context.Context, core.ID) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func stringField(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

type fakeClassifier struct {
	invalidated string
}

func (f *fakeClassifier) Invalidate(tool string) { f.invalidated = tool }

func TestHandleSchedulerRun(t *testing.T) {
	t.Run("Should tick the requested bucket", func(t *testing.T) {
		sched := &fakeScheduler{}
		api := New(Options{Scheduler: sched})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/scheduler/run", schedulerRunRequest{Interval: "15min"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "15min", sched.tickBucket)
	})

	t.Run("Should reject a missing interval", func(t *testing.T) {
		api := New(Options{Scheduler: &fakeScheduler{}})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/scheduler/run", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSchedulerPolling(t *testing.T) {
	t.Run("Should force-poll when automation_id is given", func(t *testing.T) {
		id := core.MustNewID()
		poller := &fakePoller{}
		api := New(Options{Poller: poller})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/scheduler/polling", schedulerPollingRequest{AutomationID: id.String()})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, poller.forcePollID)
	})

	t.Run("Should tick by category when no automation_id is given", func(t *testing.T) {
		poller := &fakePoller{}
		api := New(Options{Poller: poller})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/scheduler/polling", schedulerPollingRequest{Category: "oura"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "oura", poller.category)
	})
}

func TestHandleScheduledRuns(t *testing.T) {
	t.Run("Should filter projected runs by interval and user_id", func(t *testing.T) {
		owner := core.MustNewID()
		rec1 := &automation.Record{
			ID: core.MustNewID(), OwnerID: owner,
			TriggerConfig: map[string]any{"interval": "daily", "time_of_day": "09:00"},
		}
		other := core.MustNewID()
		rec2 := &automation.Record{
			ID: core.MustNewID(), OwnerID: other,
			TriggerConfig: map[string]any{"interval": "daily", "time_of_day": "09:00"},
		}
		store := &fakeScheduledStore{records: []*automation.Record{rec1, rec2}}
		api := New(Options{ScheduledRuns: store, ExecutionLogs: fakeLogStore{}})

		rr := doJSON(t, newTestRouter(api), http.MethodPost, "/scheduler/scheduled-runs", scheduledRunsRequest{
			Interval: scheduler.BucketDaily,
			UserID:   owner.String(),
		})
		assert.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			ScheduledRuns []scheduler.ScheduledRun `json:"scheduled_runs"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Len(t, body.ScheduledRuns, 1)
		assert.Equal(t, rec1.ID, body.ScheduledRuns[0].AutomationID)
	})
}

func TestHandleSchedulerTrigger(t *testing.T) {
	t.Run("Should force-run the named automation", func(t *testing.T) {
		id := core.MustNewID()
		sched := &fakeScheduler{}
		api := New(Options{Scheduler: sched})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/scheduler/trigger", schedulerTriggerRequest{AutomationID: id.String()})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, sched.forceRunID)
	})
}

func TestHandleExecute(t *testing.T) {
	t.Run("Should dispatch the automation and return its execution log", func(t *testing.T) {
		id := core.MustNewID()
		owner := core.MustNewID()
		auto := &automation.Record{ID: id, OwnerID: owner}
		execLog := &executor.ExecutionLog{AutomationID: id, Status: executor.StatusCompleted}
		api := New(Options{
			Dispatcher:  &fakeDispatcher{log: execLog},
			Automations: &fakeAutomations{records: map[core.ID]*automation.Record{id: auto}},
			Users:       &fakeUsers{},
		})

		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/execute", executeRequest{AutomationID: id.String()})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), string(executor.StatusCompleted))
	})

	t.Run("Should 404 on an unknown automation id", func(t *testing.T) {
		api := New(Options{Automations: &fakeAutomations{records: map[core.ID]*automation.Record{}}})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/execute", executeRequest{AutomationID: core.MustNewID().String()})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleInvalidateToolTag(t *testing.T) {
	t.Run("Should invalidate the named tool", func(t *testing.T) {
		classifier := &fakeClassifier{}
		api := New(Options{Classifier: classifier})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/admin/tool-tags/invalidate", invalidateToolTagRequest{ToolName: "oura_sleep"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "oura_sleep", classifier.invalidated)
	})

	t.Run("Should 503 when no classifier is configured", func(t *testing.T) {
		api := New(Options{})
		rec := doJSON(t, newTestRouter(api), http.MethodPost, "/admin/tool-tags/invalidate", invalidateToolTagRequest{ToolName: "x"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
