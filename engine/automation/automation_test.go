package automation_test

import (
	"testing"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
	"github.com/stretchr/testify/assert"
)

func TestRecord_IsExecutable(t *testing.T) {
	t.Run("Should be executable only when active is true", func(t *testing.T) {
		r := &automation.Record{Active: true}
		assert.True(t, r.IsExecutable())
		r.Active = false
		assert.False(t, r.IsExecutable())
	})
	t.Run("Should report false for a nil receiver", func(t *testing.T) {
		var r *automation.Record
		assert.False(t, r.IsExecutable())
	})
}

func TestRecord_IsOneTimeSchedule(t *testing.T) {
	t.Run("Should flag schedule_once triggers", func(t *testing.T) {
		r := &automation.Record{TriggerType: automation.TriggerScheduleOnce}
		assert.True(t, r.IsOneTimeSchedule())
		r.TriggerType = automation.TriggerScheduleRecurring
		assert.False(t, r.IsOneTimeSchedule())
	})
}

func TestAction_HasCondition(t *testing.T) {
	t.Run("Should report true only when Condition is set", func(t *testing.T) {
		a := automation.Action{ID: "a1", Tool: "x"}
		assert.False(t, a.HasCondition())
		a.Condition = &template.Condition{Path: "x", Op: template.OpExists}
		assert.True(t, a.HasCondition())
	})
}
