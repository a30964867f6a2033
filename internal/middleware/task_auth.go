package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/services"
)

// LoadTask resolves the :id parameter to a task and stores it in context.
func LoadTask(taskService *services.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			c.Abort()
			return
		}

		task, err := taskService.GetTask(c.Request.Context(), taskID)
		if err != nil {
			apierrors.RespondWithServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTask, *task)
		c.Next()
	}
}

// GetTask retrieves the task loaded by LoadTask
func GetTask(c *gin.Context) (models.Task, bool) {
	v, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return models.Task{}, false
	}
	task, ok := v.(models.Task)
	return task, ok
}
