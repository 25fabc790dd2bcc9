package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsforge/backend/internal/engine"
	"github.com/jsforge/backend/internal/sandbox"
	"github.com/jsforge/backend/internal/shared/id"
)

// maxCodeSize bounds submitted snippets to keep analysis and caching cheap
const maxCodeSize = 256 * 1024

// Handlers contains all HTTP handlers
type Handlers struct {
	engine *engine.Engine
	pool   *sandbox.Pool
}

// NewHandlers creates a new handler set
func NewHandlers(eng *engine.Engine, pool *sandbox.Pool) *Handlers {
	return &Handlers{
		engine: eng,
		pool:   pool,
	}
}

// ExecuteRequest is the body of an execution submission
type ExecuteRequest struct {
	Code        string `json:"code" binding:"required"`
	Priority    int    `json:"priority"`
	BypassCache bool   `json:"bypass_cache"`
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "JSForge Execution Service (Go)",
		"version": "0.3.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"engine":  h.engine.Metrics(),
		"sandbox": h.pool.Stats(),
	})
}

// Execute runs a code snippet and returns its result. Failures inside
// the snippet are reported in the result body, not as HTTP errors.
func (h *Handlers) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Code) > maxCodeSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "code exceeds maximum size"})
		return
	}

	result := h.engine.Execute(c.Request.Context(), req.Code, engine.Options{
		Priority:    req.Priority,
		BypassCache: req.BypassCache,
	})

	c.JSON(http.StatusOK, result)
}

// ListActive lists ids of executions currently running
func (h *Handlers) ListActive(c *gin.Context) {
	active := h.engine.Active()
	c.JSON(http.StatusOK, gin.H{
		"active": active,
		"count":  len(active),
	})
}

// Cancel aborts a single execution by id
func (h *Handlers) Cancel(c *gin.Context) {
	execID := c.Param("id")
	if execID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "execution id is required"})
		return
	}

	cancelled := h.engine.Cancel(id.ExecutionID(execID))
	if !cancelled {
		c.JSON(http.StatusNotFound, gin.H{
			"cancelled":    false,
			"execution_id": execID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cancelled":    true,
		"execution_id": execID,
	})
}

// CancelAll aborts every running and queued execution
func (h *Handlers) CancelAll(c *gin.Context) {
	n := h.engine.CancelAll()
	c.JSON(http.StatusOK, gin.H{
		"cancelled": n,
	})
}

// EngineMetrics reports aggregated execution metrics
func (h *Handlers) EngineMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Metrics())
}

// ClearCache drops all cached execution results
func (h *Handlers) ClearCache(c *gin.Context) {
	h.engine.ClearCache()
	c.JSON(http.StatusOK, gin.H{
		"cleared": true,
	})
}

// GetConfig reports the engine's current configuration
func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Config())
}

// UpdateConfig applies a partial configuration update and returns the
// resulting configuration
func (h *Handlers) UpdateConfig(c *gin.Context) {
	var patch engine.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.engine.UpdateConfig(patch)
	c.JSON(http.StatusOK, h.engine.Config())
}
