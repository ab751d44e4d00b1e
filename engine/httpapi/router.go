package httpapi

import (
	"net/http"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/automation"
	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/SimbaBuilds/NL-To-Automation/engine/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts the admin endpoints of §6 on router.
func RegisterRoutes(router gin.IRouter, api *API) {
	router.Use(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Next()
	})

	router.POST("/scheduler/run", api.handleSchedulerRun)
	router.POST("/scheduler/polling", api.handleSchedulerPolling)
	router.POST("/scheduler/scheduled-runs", api.handleScheduledRuns)
	router.POST("/scheduler/trigger", api.handleSchedulerTrigger)
	router.POST("/execute", api.handleExecute)
	router.POST("/admin/tool-tags/invalidate", api.handleInvalidateToolTag)
}

type schedulerRunRequest struct {
	Interval string `json:"interval" binding:"required"`
}

func (a *API) handleSchedulerRun(c *gin.Context) {
	var req schedulerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.scheduler.Tick(c.Request.Context(), req.Interval); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval": req.Interval})
}

type schedulerPollingRequest struct {
	Category     string `json:"category"`
	AutomationID string `json:"automation_id"`
}

func (a *API) handleSchedulerPolling(c *gin.Context) {
	var req schedulerPollingRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	if req.AutomationID != "" {
		id, err := core.ParseID(req.AutomationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := a.poller.ForcePoll(ctx, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"automation_id": req.AutomationID})
		return
	}

	if err := a.poller.TickCategory(ctx, req.Category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": req.Category})
}

type scheduledRunsRequest struct {
	Interval string `json:"interval"`
	UserID   string `json:"user_id"`
	Limit    int    `json:"limit"`
}

func (a *API) handleScheduledRuns(c *gin.Context) {
	var req scheduledRunsRequest
	_ = c.ShouldBindJSON(&req)

	runs, err := scheduler.ListScheduledRuns(c.Request.Context(), a.scheduledRuns, a.executionLogs, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filtered := make([]scheduler.ScheduledRun, 0, len(runs))
	for _, run := range runs {
		if req.Interval != "" && run.Bucket != req.Interval {
			continue
		}
		if req.UserID != "" && run.OwnerID.String() != req.UserID {
			continue
		}
		filtered = append(filtered, run)
		if req.Limit > 0 && len(filtered) >= req.Limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{"scheduled_runs": filtered})
}

type schedulerTriggerRequest struct {
	AutomationID string `json:"automation_id" binding:"required"`
	UserID       string `json:"user_id"`
}

func (a *API) handleSchedulerTrigger(c *gin.Context) {
	var req schedulerTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := core.ParseID(req.AutomationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.scheduler.ForceRun(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"automation_id": req.AutomationID})
}

type executeRequest struct {
	AutomationID string         `json:"automation_id" binding:"required"`
	TriggerData  map[string]any `json:"trigger_data"`
	TestMode     bool           `json:"test_mode"`
}

// handleExecute runs one automation synchronously and returns its
// ExecutionLog, for direct dispatch (§6's
// "POST /execute {automation_id, trigger_data, test_mode?}"). test_mode
// only controls whether the caller treats this as a rehearsal; the
// automation still runs against its real tools — this engine has no
// sandboxed tool-execution mode to substitute.
func (a *API) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := core.ParseID(req.AutomationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	auto, err := a.automations.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	user, err := a.users.Get(ctx, auto.OwnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	execLog, err := a.dispatcher.Execute(ctx, auto, automation.TriggerManual, req.TriggerData, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, execLog)
}

type invalidateToolTagRequest struct {
	ToolName string `json:"tool_name" binding:"required"`
}

func (a *API) handleInvalidateToolTag(c *gin.Context) {
	if a.classifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tool-tag classifier not configured"})
		return
	}
	var req invalidateToolTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.classifier.Invalidate(req.ToolName)
	c.JSON(http.StatusOK, gin.H{"tool_name": req.ToolName})
}
