package models

import "time"

// TaskOrganizationStatus is one organization's progress on a task.
// A task holds at most one entry per organization.
type TaskOrganizationStatus struct {
	ID                   uint64    `gorm:"primarykey" json:"-"`
	TaskID               uint64    `gorm:"not null;uniqueIndex:idx_task_org_status" json:"task_id"`
	OrganizationID       uint64    `gorm:"not null;uniqueIndex:idx_task_org_status" json:"organization_id"`
	CompletionPercentage int       `gorm:"not null;default:0" json:"completion_percentage"`
	Comment              string    `gorm:"type:text" json:"comment"`
	LastUpdated          time.Time `gorm:"not null" json:"last_updated"`
}
