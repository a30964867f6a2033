package dto

import (
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/constants"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/services"
	"github.com/yukikurage/mo-task-monitor/internal/utils"
)

// TaskStatusDTO represents one organization's progress in API responses
type TaskStatusDTO struct {
	OrganizationID       uint64           `json:"organization_id"`
	Organization         *OrganizationDTO `json:"organization,omitempty"`
	CompletionPercentage int              `json:"completion_percentage"`
	Comment              string           `json:"comment"`
	LastUpdated          time.Time        `json:"last_updated"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID                   uint64            `json:"id"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	OrganizationID       uint64            `json:"organization_id"`
	Organization         *OrganizationDTO  `json:"organization,omitempty"`
	StartDate            string            `json:"start_date"`
	EndDate              string            `json:"end_date"`
	AssignedBy           string            `json:"assigned_by"`
	CompletionPercentage int               `json:"completion_percentage"`
	Status               models.TaskStatus `json:"status"`
	Result               string            `json:"result"`
	Comment              string            `json:"comment"`
	DaysLeft             int               `json:"days_left"`
	Urgency              models.Urgency    `json:"urgency"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	Statuses             []TaskStatusDTO   `json:"statuses"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// DashboardDTO represents the overall task summary
type DashboardDTO struct {
	TasksTotal      int `json:"tasks_total"`
	TasksCompleted  int `json:"tasks_completed"`
	TasksInProgress int `json:"tasks_in_progress"`
	TasksOverdue    int `json:"tasks_overdue"`
	CompletedRate   int `json:"completed_rate"`
	InProgressRate  int `json:"in_progress_rate"`
	OverdueRate     int `json:"overdue_rate"`
}

// OrganizationNames resolves organization IDs to display records.
type OrganizationNames map[uint64]models.Organization

// NewOrganizationNames indexes orgs by ID
func NewOrganizationNames(orgs []models.Organization) OrganizationNames {
	names := make(OrganizationNames, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org
	}
	return names
}

func (n OrganizationNames) lookup(id uint64) *OrganizationDTO {
	org, ok := n[id]
	if !ok {
		return nil
	}
	dto := ToOrganizationDTO(org)
	return &dto
}

// ToTaskDTO converts a Task model to TaskDTO. orgs may be nil.
func ToTaskDTO(task models.Task, orgs OrganizationNames, now time.Time) TaskDTO {
	dto := TaskDTO{
		ID:                   task.ID,
		Title:                task.Title,
		Description:          task.Description,
		OrganizationID:       task.OrganizationID,
		Organization:         orgs.lookup(task.OrganizationID),
		StartDate:            task.StartDate.Format(constants.DateLayout),
		EndDate:              task.EndDate.Format(constants.DateLayout),
		AssignedBy:           task.AssignedBy,
		CompletionPercentage: task.CompletionPercentage,
		Status:               task.Status,
		Result:               task.Result,
		Comment:              task.Comment,
		DaysLeft:             models.DaysLeft(task.EndDate, now),
		Urgency:              task.Urgency(now),
		CreatedAt:            task.CreatedAt,
		UpdatedAt:            task.UpdatedAt,
		Statuses:             make([]TaskStatusDTO, len(task.Statuses)),
	}

	for i, s := range task.Statuses {
		dto.Statuses[i] = TaskStatusDTO{
			OrganizationID:       s.OrganizationID,
			Organization:         orgs.lookup(s.OrganizationID),
			CompletionPercentage: s.CompletionPercentage,
			Comment:              s.Comment,
			LastUpdated:          s.LastUpdated,
		}
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task, orgs OrganizationNames, now time.Time) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task, orgs, now)
	}
	return items
}

// ToTaskListResponse converts one page of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, orgs OrganizationNames, now time.Time, params utils.PaginationParams, total int) TaskListResponse {
	return TaskListResponse{
		Tasks: ToTaskDTOs(tasks, orgs, now),
		Pagination: utils.PaginationResponse{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      int64(total),
			TotalPages: utils.TotalPages(total, params.Limit),
		},
	}
}

// ToDashboardDTO converts dashboard statistics
func ToDashboardDTO(stats services.DashboardStats) DashboardDTO {
	return DashboardDTO{
		TasksTotal:      stats.TasksTotal,
		TasksCompleted:  stats.TasksCompleted,
		TasksInProgress: stats.TasksInProgress,
		TasksOverdue:    stats.TasksOverdue,
		CompletedRate:   stats.CompletedRate,
		InProgressRate:  stats.InProgressRate,
		OverdueRate:     stats.OverdueRate,
	}
}
