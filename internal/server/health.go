package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports whether the pattern slot can be read.
type HealthHandler struct {
	probe func(ctx context.Context) error
}

// NewHealthHandler creates a health handler that runs probe on every check.
func NewHealthHandler(probe func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{probe: probe}
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GET /healthcheck
// Returns 200 if storage is reachable, 503 otherwise.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.probe == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.probe(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "unhealthy",
			Storage: "unavailable",
			Error:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Storage: "available"})
}
