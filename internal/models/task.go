package models

import (
	"math"
	"time"
)

type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "not_started"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known status labels.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusNotStarted, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskCompletePercentage marks a task or status entry as done.
const TaskCompletePercentage = 100

type Task struct {
	ID                   uint64     `gorm:"primarykey" json:"id"`
	Title                string     `gorm:"type:varchar(255);not null" json:"title"`
	Description          string     `gorm:"type:text;not null" json:"description"`
	OrganizationID       uint64     `gorm:"not null;index" json:"organization_id"`
	StartDate            time.Time  `gorm:"not null" json:"start_date"`
	EndDate              time.Time  `gorm:"not null;index" json:"end_date"`
	AssignedBy           string     `gorm:"type:varchar(255);not null" json:"assigned_by"`
	CompletionPercentage int        `gorm:"not null;default:0" json:"completion_percentage"`
	Status               TaskStatus `gorm:"type:varchar(20);not null;default:'not_started'" json:"status"`
	Result               string     `gorm:"type:text" json:"result"`
	Comment              string     `gorm:"type:text" json:"comment"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Relations
	Statuses []TaskOrganizationStatus `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"statuses,omitempty"`
}

// StatusFor returns the status entry for the organization, if any.
func (t Task) StatusFor(orgID uint64) (TaskOrganizationStatus, bool) {
	for _, s := range t.Statuses {
		if s.OrganizationID == orgID {
			return s, true
		}
	}
	return TaskOrganizationStatus{}, false
}

// References reports whether the task targets the organization, either as
// its primary organization or through a status entry.
func (t Task) References(orgID uint64) bool {
	if t.OrganizationID == orgID {
		return true
	}
	_, ok := t.StatusFor(orgID)
	return ok
}

// PercentageFor is the task's completion for one organization: its status
// entry when present, otherwise the overall percentage.
func (t Task) PercentageFor(orgID uint64) int {
	if s, ok := t.StatusFor(orgID); ok {
		return s.CompletionPercentage
	}
	return t.CompletionPercentage
}

// Recompute refreshes the overall percentage from the status entries.
// Tasks without entries keep their own value.
func (t *Task) Recompute() {
	if len(t.Statuses) == 0 {
		return
	}
	t.CompletionPercentage = RollupPercentage(t.Statuses)
}

// IsCompleted reports whether the overall percentage is 100.
func (t Task) IsCompleted() bool {
	return t.CompletionPercentage == TaskCompletePercentage
}

// IsOverdue reports whether the task is unfinished and its end date lies
// strictly before the calendar day of now.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.IsCompleted() && EndedBefore(t.EndDate, now)
}

// Urgency is the deadline badge shown next to a task.
type Urgency string

const (
	UrgencyCompleted Urgency = "completed"
	UrgencyOverdue   Urgency = "overdue"
	UrgencyDueSoon   Urgency = "due_soon"
	UrgencyOnTrack   Urgency = "on_track"
)

// DueSoonDays is how close the end date must be for a task to count as due soon.
const DueSoonDays = 3

// Urgency classifies the task relative to now.
func (t Task) Urgency(now time.Time) Urgency {
	switch days := DaysLeft(t.EndDate, now); {
	case t.IsCompleted():
		return UrgencyCompleted
	case days < 0:
		return UrgencyOverdue
	case days <= DueSoonDays:
		return UrgencyDueSoon
	default:
		return UrgencyOnTrack
	}
}

// DaysLeft counts whole calendar days from now until end, negative once past.
func DaysLeft(end, now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endDay.Sub(today).Hours() / 24)
}

// EndedBefore compares calendar days: end is before now's day.
func EndedBefore(end, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return endDay.Before(today)
}

// RollupPercentage is the rounded mean of the entries' percentages, 0 for none.
func RollupPercentage(statuses []TaskOrganizationStatus) int {
	values := make([]int, len(statuses))
	for i, s := range statuses {
		values[i] = s.CompletionPercentage
	}
	return RoundedMean(values)
}

// RoundedMean rounds half away from zero, which matches half-up for the
// non-negative percentages stored here.
func RoundedMean(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}
