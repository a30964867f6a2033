package services

import (
	"math"
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/models"
)

// OrganizationStats is the progress rollup of one organization's tasks.
type OrganizationStats struct {
	Organization      models.Organization
	TasksTotal        int
	TasksCompleted    int
	TasksInProgress   int
	TasksOverdue      int
	CompletionPercent int
}

// ComputeOrganizationStats rolls up the tasks that reference org. Each task
// counts with its percentage for that organization.
func ComputeOrganizationStats(org models.Organization, tasks []models.Task, now time.Time) OrganizationStats {
	stats := OrganizationStats{Organization: org}

	var percentages []int
	for _, task := range tasks {
		if !task.References(org.ID) {
			continue
		}

		pct := task.PercentageFor(org.ID)
		percentages = append(percentages, pct)
		stats.TasksTotal++

		if pct == models.TaskCompletePercentage {
			stats.TasksCompleted++
			continue
		}
		stats.TasksInProgress++
		if models.EndedBefore(task.EndDate, now) {
			stats.TasksOverdue++
		}
	}

	stats.CompletionPercent = models.RoundedMean(percentages)
	return stats
}

// DashboardStats summarizes every task.
type DashboardStats struct {
	TasksTotal      int
	TasksCompleted  int
	TasksInProgress int
	TasksOverdue    int
	// CompletedRate and InProgressRate are shares of all tasks,
	// OverdueRate is the share of in-progress tasks.
	CompletedRate  int
	InProgressRate int
	OverdueRate    int
}

// ComputeDashboardStats counts tasks by their overall percentage.
func ComputeDashboardStats(tasks []models.Task, now time.Time) DashboardStats {
	var stats DashboardStats
	for _, task := range tasks {
		stats.TasksTotal++
		if task.IsCompleted() {
			stats.TasksCompleted++
			continue
		}
		stats.TasksInProgress++
		if models.EndedBefore(task.EndDate, now) {
			stats.TasksOverdue++
		}
	}

	stats.CompletedRate = percentOf(stats.TasksCompleted, stats.TasksTotal)
	stats.InProgressRate = percentOf(stats.TasksInProgress, stats.TasksTotal)
	stats.OverdueRate = percentOf(stats.TasksOverdue, stats.TasksInProgress)
	return stats
}

func percentOf(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}
