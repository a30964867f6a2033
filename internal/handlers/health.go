package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"go.uber.org/zap"
)

type divergenceReporter interface {
	Diverged() bool
}

// HealthHandler reports storage reachability.
type HealthHandler struct {
	backend repository.Backend
}

func NewHealthHandler(backend repository.Backend) *HealthHandler {
	return &HealthHandler{backend: backend}
}

// Health answers 200 while storage is reachable, 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"backend": h.backend.Name(),
	}
	if r, ok := h.backend.(divergenceReporter); ok {
		body["diverged"] = r.Diverged()
	}

	if err := h.backend.Ping(c.Request.Context()); err != nil {
		apierrors.Logger(c).Warn("Health check failed", zap.Error(err))
		body["status"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}
