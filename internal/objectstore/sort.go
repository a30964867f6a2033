package objectstore

import (
	"sort"

	"github.com/yukikurage/mo-task-monitor/internal/models"
)

func sortTasks(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}

// sortStatuses orders entries by organization, matching the relational backend.
func sortStatuses(statuses []models.TaskOrganizationStatus) {
	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].OrganizationID < statuses[j].OrganizationID
	})
}
