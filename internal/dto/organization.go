package dto

import (
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/services"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// OrganizationStatsDTO represents an organization's task rollup
type OrganizationStatsDTO struct {
	OrganizationDTO
	TasksTotal        int `json:"tasks_total"`
	TasksCompleted    int `json:"tasks_completed"`
	TasksInProgress   int `json:"tasks_in_progress"`
	TasksOverdue      int `json:"tasks_overdue"`
	CompletionPercent int `json:"completion_percent"`
}

// OrganizationDetailDTO represents an organization with its tasks
type OrganizationDetailDTO struct {
	OrganizationStatsDTO
	Tasks []TaskDTO `json:"tasks"`
}

// ToUserDTO converts a user summary to UserDTO
func ToUserDTO(user models.UserSummary) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		IsAdmin:  user.IsAdmin,
	}
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:   org.ID,
		Name: org.Name,
	}
}

// ToOrganizationDTOs converts a slice of organizations
func ToOrganizationDTOs(orgs []models.Organization) []OrganizationDTO {
	items := make([]OrganizationDTO, len(orgs))
	for i, org := range orgs {
		items[i] = ToOrganizationDTO(org)
	}
	return items
}

// ToOrganizationStatsDTO converts an organization rollup
func ToOrganizationStatsDTO(stats services.OrganizationStats) OrganizationStatsDTO {
	return OrganizationStatsDTO{
		OrganizationDTO:   ToOrganizationDTO(stats.Organization),
		TasksTotal:        stats.TasksTotal,
		TasksCompleted:    stats.TasksCompleted,
		TasksInProgress:   stats.TasksInProgress,
		TasksOverdue:      stats.TasksOverdue,
		CompletionPercent: stats.CompletionPercent,
	}
}

// ToOrganizationStatsDTOs converts a slice of rollups
func ToOrganizationStatsDTOs(stats []services.OrganizationStats) []OrganizationStatsDTO {
	items := make([]OrganizationStatsDTO, len(stats))
	for i, s := range stats {
		items[i] = ToOrganizationStatsDTO(s)
	}
	return items
}

// ToOrganizationDetailDTO converts an organization detail
func ToOrganizationDetailDTO(detail services.OrganizationDetail, orgs OrganizationNames, now time.Time) OrganizationDetailDTO {
	return OrganizationDetailDTO{
		OrganizationStatsDTO: ToOrganizationStatsDTO(detail.Stats),
		Tasks:                ToTaskDTOs(detail.Tasks, orgs, now),
	}
}
