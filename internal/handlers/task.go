package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/dto"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"github.com/yukikurage/mo-task-monitor/internal/middleware"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/services"
	"github.com/yukikurage/mo-task-monitor/internal/utils"
	"go.uber.org/zap"
)

type TaskHandler struct {
	taskService *services.TaskService
	orgService  *services.OrganizationService
}

func NewTaskHandler(taskService *services.TaskService, orgService *services.OrganizationService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		orgService:  orgService,
	}
}

// ListTasks returns tasks matching the query filters, paginated
// Query: completed, organization_id, assigned_by, from, to, search, sort, order, page, limit
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter := services.TaskFilter{
		AssignedBy: c.Query("assigned_by"),
		Search:     c.Query("search"),
		SortBy:     c.Query("sort"),
		Desc:       c.Query("order") == "desc",
	}

	if raw := c.Query("completed"); raw != "" && raw != "all" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid completed filter")
			return
		}
		filter.Completed = &completed
	}

	if raw := c.Query("organization_id"); raw != "" {
		orgID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid organization_id")
			return
		}
		filter.OrganizationID = orgID
	}

	var err error
	if filter.From, err = utils.ParseOptionalDate(c.Query("from")); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}
	if filter.To, err = utils.ParseOptionalDate(c.Query("to")); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	tasks, err := h.taskService.ListTasks(ctx, filter)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	orgs, ok := h.organizationNames(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	page := utils.Paginate(tasks, params)
	c.JSON(http.StatusOK, dto.ToTaskListResponse(page, orgs, h.taskService.Now(), params, len(tasks)))
}

// GetTask returns a specific task by ID
// Task is already loaded by LoadTask middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	h.respondTask(c, http.StatusOK, &task)
}

type statusRequest struct {
	OrganizationID       uint64 `json:"organization_id"`
	CompletionPercentage int    `json:"completion_percentage"`
	Comment              string `json:"comment"`
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	type CreateTaskRequest struct {
		Title                string            `json:"title"`
		Description          string            `json:"description"`
		OrganizationID       uint64            `json:"organization_id"`
		OrganizationIDs      []uint64          `json:"organization_ids"`
		StartDate            string            `json:"start_date"`
		EndDate              string            `json:"end_date"`
		AssignedBy           string            `json:"assigned_by"`
		CompletionPercentage int               `json:"completion_percentage"`
		Status               models.TaskStatus `json:"status"`
		Result               string            `json:"result"`
		Comment              string            `json:"comment"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	start, end, ok := parseDateRange(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), services.CreateTaskInput{
		Title:                req.Title,
		Description:          req.Description,
		OrganizationID:       req.OrganizationID,
		OrganizationIDs:      req.OrganizationIDs,
		StartDate:            start,
		EndDate:              end,
		AssignedBy:           req.AssignedBy,
		CompletionPercentage: req.CompletionPercentage,
		Status:               req.Status,
		Result:               req.Result,
		Comment:              req.Comment,
	})
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	apierrors.Logger(c).Info("Task created", zap.Uint64("task_id", task.ID), zap.Int("organizations", len(task.Statuses)))
	h.respondTask(c, http.StatusCreated, task)
}

// UpdateTask updates an existing task
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type UpdateTaskRequest struct {
		Title                *string            `json:"title"`
		Description          *string            `json:"description"`
		OrganizationID       *uint64            `json:"organization_id"`
		StartDate            *string            `json:"start_date"`
		EndDate              *string            `json:"end_date"`
		AssignedBy           *string            `json:"assigned_by"`
		CompletionPercentage *int               `json:"completion_percentage"`
		Status               *models.TaskStatus `json:"status"`
		Result               *string            `json:"result"`
		Comment              *string            `json:"comment"`
		Statuses             *[]statusRequest   `json:"statuses"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateTaskInput{
		Title:                req.Title,
		Description:          req.Description,
		OrganizationID:       req.OrganizationID,
		AssignedBy:           req.AssignedBy,
		CompletionPercentage: req.CompletionPercentage,
		Status:               req.Status,
		Result:               req.Result,
		Comment:              req.Comment,
	}

	if req.StartDate != nil {
		start, err := utils.ParseDate(*req.StartDate)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		input.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := utils.ParseDate(*req.EndDate)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		input.EndDate = &end
	}

	if req.Statuses != nil {
		statuses := make([]services.StatusInput, len(*req.Statuses))
		for i, s := range *req.Statuses {
			statuses[i] = services.StatusInput{
				OrganizationID:       s.OrganizationID,
				CompletionPercentage: s.CompletionPercentage,
				Comment:              s.Comment,
			}
		}
		input.Statuses = &statuses
	}

	updated, err := h.taskService.UpdateTask(c.Request.Context(), task.ID, input)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	h.respondTask(c, http.StatusOK, updated)
}

// DeleteTask deletes a task and its organization statuses
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), task.ID); err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	apierrors.Logger(c).Info("Task deleted", zap.Uint64("task_id", task.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// UpdateOrganizationStatus records one organization's progress on a task
func (h *TaskHandler) UpdateOrganizationStatus(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	orgID, err := strconv.ParseUint(c.Param("org_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid organization ID")
		return
	}

	type StatusUpdateRequest struct {
		CompletionPercentage *int    `json:"completion_percentage"`
		Comment              *string `json:"comment"`
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "completion_percentage must be an integer between 0 and 100")
		return
	}
	if req.CompletionPercentage == nil {
		apierrors.BadRequest(c, "completion_percentage is required")
		return
	}

	updated, err := h.taskService.UpdateOrganizationStatus(c.Request.Context(), task.ID, orgID, services.OrganizationStatusInput{
		CompletionPercentage: *req.CompletionPercentage,
		Comment:              req.Comment,
	})
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	h.respondTask(c, http.StatusOK, updated)
}

// ListAssigners returns the distinct assigned-by names
func (h *TaskHandler) ListAssigners(c *gin.Context) {
	names, err := h.taskService.ListAssigners(c.Request.Context())
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assigners": names})
}

// Dashboard returns totals across all tasks
func (h *TaskHandler) Dashboard(c *gin.Context) {
	stats, err := h.taskService.DashboardStats(c.Request.Context())
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDashboardDTO(*stats))
}

func (h *TaskHandler) respondTask(c *gin.Context, status int, task *models.Task) {
	orgs, ok := h.organizationNames(c)
	if !ok {
		return
	}
	c.JSON(status, dto.ToTaskDTO(*task, orgs, h.taskService.Now()))
}

func (h *TaskHandler) organizationNames(c *gin.Context) (dto.OrganizationNames, bool) {
	orgs, err := h.orgService.ListOrganizations(c.Request.Context())
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return nil, false
	}
	return dto.NewOrganizationNames(orgs), true
}

// parseDateRange parses both dates, leaving empty values zero for the service to reject.
func parseDateRange(c *gin.Context, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	var start, end time.Time
	for _, d := range []struct {
		raw string
		dst *time.Time
	}{{rawStart, &start}, {rawEnd, &end}} {
		parsed, err := utils.ParseOptionalDate(d.raw)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return time.Time{}, time.Time{}, false
		}
		if parsed != nil {
			*d.dst = *parsed
		}
	}
	return start, end, true
}
