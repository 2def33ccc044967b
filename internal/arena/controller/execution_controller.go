package controller

import (
	"context"
	"net/http"

	"arena/internal/arena/model"
	"arena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Executor is the part of the execution service the handlers need.
type Executor interface {
	Validate(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error)
	Simulate(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error)
}

// ExecutionController serves the execution endpoints.
type ExecutionController struct {
	svc Executor
}

// NewExecutionController creates a new controller.
func NewExecutionController(svc Executor) *ExecutionController {
	return &ExecutionController{svc: svc}
}

// Register mounts /health on public and the submission routes on limited.
// Supervisor probes must not be throttled by submitter traffic.
func (h *ExecutionController) Register(public, limited gin.IRoutes) {
	public.GET("/health", h.Health)
	limited.POST("/validate", h.Validate)
	limited.POST("/simulate", h.Simulate)
}

// Validate handles POST /validate.
func (h *ExecutionController) Validate(c *gin.Context) {
	h.handle(c, h.svc.Validate)
}

// Simulate handles POST /simulate.
func (h *ExecutionController) Simulate(c *gin.Context) {
	h.handle(c, h.svc.Simulate)
}

// Health handles GET /health.
func (h *ExecutionController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{Status: "healthy"})
}

func (h *ExecutionController) handle(c *gin.Context, run func(context.Context, model.ExecuteRequest) (model.ExecuteResponse, error)) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, model.ErrorResponse("invalid request body: "+err.Error()))
		return
	}
	resp, err := run(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
