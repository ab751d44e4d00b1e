package main

import (
	"context"
	"fmt"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/postgres"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

// loggingExecutor wraps the action executor with execution-log
// persistence, so every dispatch path (scheduler, the queue dispatcher,
// and the direct /execute admin endpoint) gets its ExecutionLog recorded
// without each caller having to remember to do it itself. It satisfies
// scheduler.Dispatcher, dispatcher.Executor, and httpapi.Dispatcher,
// which all declare the same Execute signature structurally.
type loggingExecutor struct {
	exec *executor.Executor
	logs *postgres.ExecutionLogRepo
}

func newLoggingExecutor(exec *executor.Executor, logs *postgres.ExecutionLogRepo) *loggingExecutor {
	return &loggingExecutor{exec: exec, logs: logs}
}

func (e *loggingExecutor) Execute(
	ctx context.Context,
	auto *automation.Record,
	triggerType automation.TriggerType,
	triggerData map[string]any,
	user core.UserInfo,
) (*executor.ExecutionLog, error) {
	log, err := e.exec.Execute(ctx, auto, triggerType, triggerData, user)
	if err != nil {
		return nil, err
	}
	id, idErr := core.NewID()
	if idErr != nil {
		return log, fmt.Errorf("generate execution log id: %w", idErr)
	}
	if err := e.logs.Insert(ctx, id, log); err != nil {
		logger.FromContext(ctx).Error("persist execution log failed",
			"automation_id", auto.ID, "error", err)
	}
	return log, nil
}
