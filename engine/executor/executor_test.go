package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
	"github.com/SimbaBuilds/NL-To-Automation/engine/toolregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	execute func(ctx context.Context, name string, params map[string]any, ownerID core.ID, opts toolregistry.ExecuteOptions) (any, error)
}

func (f *fakeRegistry) GetByName(_ context.Context, name string) (toolregistry.Descriptor, error) {
	return toolregistry.Descriptor{Name: name}, nil
}

func (f *fakeRegistry) Execute(
	ctx context.Context,
	name string,
	params map[string]any,
	ownerID core.ID,
	opts toolregistry.ExecuteOptions,
) (any, error) {
	return f.execute(ctx, name, params, ownerID, opts)
}

type fakeNotifier struct {
	called bool
	tool   string
}

func (f *fakeNotifier) NotifyUsageLimitExceeded(_ context.Context, _ *executor.ExecutionLog, tool string) error {
	f.called = true
	f.tool = tool
	return nil
}

func newAutomation(actions ...automation.Action) *automation.Record {
	return &automation.Record{
		ID:      core.ID("auto1"),
		OwnerID: core.ID("owner1"),
		Name:    "test",
		Active:  true,
		Status:  automation.StatusActive,
		TriggerType: automation.TriggerManual,
		Actions: actions,
	}
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("Should mark the run completed when every action succeeds", func(t *testing.T) {
		reg := &fakeRegistry{execute: func(_ context.Context, name string, params map[string]any, _ core.ID, _ toolregistry.ExecuteOptions) (any, error) {
			assert.Equal(t, "send_slack_message", name)
			assert.Equal(t, "hi there", params["text"])
			return "ok", nil
		}}
		auto := newAutomation(automation.Action{
			ID:         "a1",
			Tool:       "send_slack_message",
			Parameters: map[string]any{"text": "{{greeting}}"},
			OutputAs:   "slack_result",
		})
		auto.Variables = map[string]any{"greeting": "hi there"}
		exec := executor.New(reg, nil, nil, 0)

		log, err := exec.Execute(context.Background(), auto, automation.TriggerManual, map[string]any{}, core.UserInfo{ID: core.ID("u1")})
		require.NoError(t, err)
		assert.Equal(t, executor.StatusCompleted, log.Status)
		require.Len(t, log.Actions, 1)
		assert.Equal(t, executor.ActionStatusCompleted, log.Actions[0].Status)
		assert.Equal(t, "ok", log.Actions[0].Output)
	})

	t.Run("Should skip an action whose condition is false and still run the next one", func(t *testing.T) {
		falseCond := template.Condition{Path: "count", Op: template.OpGT, Value: float64(10)}
		var secondRan bool
		reg := &fakeRegistry{execute: func(_ context.Context, name string, _ map[string]any, _ core.ID, _ toolregistry.ExecuteOptions) (any, error) {
			secondRan = true
			return nil, nil
		}}
		auto := newAutomation(
			automation.Action{ID: "a1", Tool: "noop", Condition: &falseCond},
			automation.Action{ID: "a2", Tool: "noop"},
		)
		exec := executor.New(reg, nil, nil, 0)
		log, err := exec.Execute(context.Background(), auto, automation.TriggerManual, map[string]any{"count": float64(1)}, core.UserInfo{})
		require.NoError(t, err)
		assert.True(t, secondRan)
		require.Len(t, log.Actions, 2)
		assert.Equal(t, executor.ActionStatusSkipped, log.Actions[0].Status)
		assert.Equal(t, executor.ActionStatusCompleted, log.Actions[1].Status)
		assert.Equal(t, executor.StatusCompleted, log.Status)
	})

	t.Run("Should continue past a non-fatal tool failure and report partial_failure", func(t *testing.T) {
		reg := &fakeRegistry{execute: func(_ context.Context, name string, _ map[string]any, _ core.ID, _ toolregistry.ExecuteOptions) (any, error) {
			if name == "flaky" {
				return nil, &toolregistry.Error{Class: toolregistry.ErrorClassTransient, Tool: name, Err: errors.New("boom")}
			}
			return "fine", nil
		}}
		auto := newAutomation(
			automation.Action{ID: "a1", Tool: "flaky"},
			automation.Action{ID: "a2", Tool: "stable"},
		)
		exec := executor.New(reg, nil, nil, 0)
		log, err := exec.Execute(context.Background(), auto, automation.TriggerManual, map[string]any{}, core.UserInfo{})
		require.NoError(t, err)
		assert.Equal(t, executor.StatusPartialFailure, log.Status)
		assert.Equal(t, executor.ActionStatusFailed, log.Actions[0].Status)
		assert.Equal(t, executor.ActionStatusCompleted, log.Actions[1].Status)
	})

	t.Run("Should abort remaining actions and notify on a usage-limit sentinel", func(t *testing.T) {
		var secondCalled bool
		reg := &fakeRegistry{execute: func(_ context.Context, name string, _ map[string]any, _ core.ID, _ toolregistry.ExecuteOptions) (any, error) {
			if name == "send_email" {
				return nil, &toolregistry.Error{Class: toolregistry.ErrorClassUsageLimit, Tool: name, Err: toolregistry.ErrUsageLimitExceeded}
			}
			secondCalled = true
			return nil, nil
		}}
		notifier := &fakeNotifier{}
		auto := newAutomation(
			automation.Action{ID: "a1", Tool: "send_email"},
			automation.Action{ID: "a2", Tool: "noop"},
		)
		exec := executor.New(reg, notifier, nil, 0)
		log, err := exec.Execute(context.Background(), auto, automation.TriggerManual, map[string]any{}, core.UserInfo{})
		require.NoError(t, err)
		assert.Equal(t, executor.StatusUsageLimitExceeded, log.Status)
		assert.False(t, secondCalled)
		require.Len(t, log.Actions, 1)
		assert.True(t, notifier.called)
		assert.Equal(t, "send_email", notifier.tool)
	})

	t.Run("Should report failed when every attempted action fails", func(t *testing.T) {
		reg := &fakeRegistry{execute: func(_ context.Context, _ string, _ map[string]any, _ core.ID, _ toolregistry.ExecuteOptions) (any, error) {
			return nil, errors.New("nope")
		}}
		auto := newAutomation(automation.Action{ID: "a1", Tool: "always_fails"})
		exec := executor.New(reg, nil, nil, 0)
		log, err := exec.Execute(context.Background(), auto, automation.TriggerManual, map[string]any{}, core.UserInfo{})
		require.NoError(t, err)
		assert.Equal(t, executor.StatusFailed, log.Status)
	})

	t.Run("Should fail an action whose tool exceeds its timeout", func(t *testing.T) {
		reg := &fakeRegistry{execute: func(ctx context.Context, _ string, _ map[string]any, _ core.ID, _ toolregistry.ExecuteOptions) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		auto := newAutomation(automation.Action{ID: "a1", Tool: "slow"})
		exec := executor.New(reg, nil, nil, 10*time.Millisecond)
		log, err := exec.Execute(context.Background(), auto, automation.TriggerManual, map[string]any{}, core.UserInfo{})
		require.NoError(t, err)
		assert.Equal(t, executor.StatusFailed, log.Status)
		assert.Equal(t, executor.ActionStatusFailed, log.Actions[0].Status)
	})

	t.Run("Should reject a nil automation", func(t *testing.T) {
		exec := executor.New(&fakeRegistry{}, nil, nil, 0)
		_, err := exec.Execute(context.Background(), nil, automation.TriggerManual, map[string]any{}, core.UserInfo{})
		assert.Error(t, err)
	})
}
