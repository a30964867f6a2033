package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/mo-task-monitor/internal/models"
)

func relationalFixture(t *testing.T) *fixture {
	return newFixture(t, backends()[0].open)
}

func validInput(orgID uint64) CreateTaskInput {
	return CreateTaskInput{
		Title:          "Report",
		Description:    "Quarterly report",
		OrganizationID: orgID,
		StartDate:      date("2024-03-01"),
		EndDate:        date("2024-03-31"),
		AssignedBy:     "Admin User",
	}
}

func TestCreateTask_Validation(t *testing.T) {
	f := relationalFixture(t)

	tests := []struct {
		name    string
		mutate  func(*CreateTaskInput)
		wantErr error
	}{
		{"missing title", func(in *CreateTaskInput) { in.Title = "  " }, ErrTitleRequired},
		{"missing description", func(in *CreateTaskInput) { in.Description = "" }, ErrDescriptionRequired},
		{"missing assigner", func(in *CreateTaskInput) { in.AssignedBy = "" }, ErrAssignedByRequired},
		{"missing dates", func(in *CreateTaskInput) { in.StartDate = time.Time{} }, ErrDatesRequired},
		{"end before start", func(in *CreateTaskInput) { in.EndDate = date("2024-02-01") }, ErrEndBeforeStart},
		{"percentage too high", func(in *CreateTaskInput) { in.CompletionPercentage = 101 }, ErrInvalidPercentage},
		{"negative percentage", func(in *CreateTaskInput) { in.CompletionPercentage = -5 }, ErrInvalidPercentage},
		{"no organization", func(in *CreateTaskInput) { in.OrganizationID = 0 }, ErrOrganizationRequired},
		{"unknown organization", func(in *CreateTaskInput) { in.OrganizationIDs = []uint64{f.orgA.ID, 999} }, ErrUnknownOrganization},
		{"unknown status", func(in *CreateTaskInput) { in.Status = "paused" }, ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(f.orgA.ID)
			tt.mutate(&in)

			_, err := f.tasks.CreateTask(f.ctx, in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	tasks, err := f.tasks.ListTasks(f.ctx, TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCreateTask_SingleOrganizationCarriesPercentage(t *testing.T) {
	f := relationalFixture(t)

	in := validInput(f.orgA.ID)
	in.CompletionPercentage = 30
	task, err := f.tasks.CreateTask(f.ctx, in)
	require.NoError(t, err)

	require.Len(t, task.Statuses, 1)
	assert.Equal(t, f.orgA.ID, task.Statuses[0].OrganizationID)
	assert.Equal(t, 30, task.Statuses[0].CompletionPercentage)
	assert.Equal(t, 30, task.CompletionPercentage)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)
	assert.True(t, task.CreatedAt.Equal(testNow))
}

func TestUpdateTask_MergesFields(t *testing.T) {
	f := relationalFixture(t)
	task, err := f.tasks.CreateTask(f.ctx, validInput(f.orgA.ID))
	require.NoError(t, err)

	title := "Renamed"
	result := "Done early"
	updated, err := f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{Title: &title, Result: &result})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Done early", updated.Result)
	assert.Equal(t, "Quarterly report", updated.Description)
	assert.Len(t, updated.Statuses, 1)
}

func TestUpdateTask_BarePercentageOnSingleOrganization(t *testing.T) {
	f := relationalFixture(t)
	task, err := f.tasks.CreateTask(f.ctx, validInput(f.orgA.ID))
	require.NoError(t, err)

	pct := 75
	updated, err := f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{CompletionPercentage: &pct})
	require.NoError(t, err)
	assert.Equal(t, 75, updated.CompletionPercentage)

	stored, err := f.tasks.GetTask(f.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, stored.Statuses, 1)
	assert.Equal(t, 75, stored.Statuses[0].CompletionPercentage)
	assert.Equal(t, 75, stored.CompletionPercentage)
}

func TestUpdateTask_BarePercentageOnMultiOrganizationRejected(t *testing.T) {
	f := relationalFixture(t)
	task := f.createBulk(t, "Shared", f.orgA.ID, f.orgB.ID)

	pct := 90
	_, err := f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{CompletionPercentage: &pct})
	assert.ErrorIs(t, err, ErrDerivedPercentage)

	same := 0
	_, err = f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{CompletionPercentage: &same})
	assert.NoError(t, err)
}

func TestUpdateTask_ReplacesStatuses(t *testing.T) {
	f := relationalFixture(t)
	task := f.createBulk(t, "Shared", f.orgA.ID, f.orgB.ID)

	statuses := []StatusInput{
		{OrganizationID: f.orgB.ID, CompletionPercentage: 100, Comment: "done"},
		{OrganizationID: f.orgKDC.ID, CompletionPercentage: 50},
	}
	updated, err := f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{Statuses: &statuses})
	require.NoError(t, err)
	assert.Equal(t, 75, updated.CompletionPercentage)

	stored, err := f.tasks.GetTask(f.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, stored.Statuses, 2)
	_, hasA := stored.StatusFor(f.orgA.ID)
	assert.False(t, hasA)
	b, _ := stored.StatusFor(f.orgB.ID)
	assert.Equal(t, "done", b.Comment)

	dup := []StatusInput{{OrganizationID: f.orgA.ID}, {OrganizationID: f.orgA.ID}}
	_, err = f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{Statuses: &dup})
	assert.ErrorIs(t, err, ErrDuplicateStatus)
}

func TestUpdateTask_MovesSingleEntryWithPrimary(t *testing.T) {
	f := relationalFixture(t)
	in := validInput(f.orgA.ID)
	in.CompletionPercentage = 20
	task, err := f.tasks.CreateTask(f.ctx, in)
	require.NoError(t, err)

	updated, err := f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{OrganizationID: &f.orgB.ID})
	require.NoError(t, err)
	assert.Equal(t, f.orgB.ID, updated.OrganizationID)

	stored, err := f.tasks.GetTask(f.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, stored.Statuses, 1)
	assert.Equal(t, f.orgB.ID, stored.Statuses[0].OrganizationID)
	assert.Equal(t, 20, stored.Statuses[0].CompletionPercentage)
}

func TestUpdateTask_Errors(t *testing.T) {
	f := relationalFixture(t)
	task, err := f.tasks.CreateTask(f.ctx, validInput(f.orgA.ID))
	require.NoError(t, err)

	title := "x"
	_, err = f.tasks.UpdateTask(f.ctx, 999, UpdateTaskInput{Title: &title})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	end := date("2024-01-01")
	_, err = f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{EndDate: &end})
	assert.ErrorIs(t, err, ErrEndBeforeStart)

	missing := uint64(999)
	_, err = f.tasks.UpdateTask(f.ctx, task.ID, UpdateTaskInput{OrganizationID: &missing})
	assert.ErrorIs(t, err, ErrUnknownOrganization)
}

func TestUpdateOrganizationStatus_KeepsCommentWhenOmitted(t *testing.T) {
	f := relationalFixture(t)
	task := f.createBulk(t, "Shared", f.orgA.ID, f.orgB.ID)

	comment := "waiting for documents"
	_, err := f.tasks.UpdateOrganizationStatus(f.ctx, task.ID, f.orgA.ID, OrganizationStatusInput{CompletionPercentage: 10, Comment: &comment})
	require.NoError(t, err)

	updated := f.report(t, task.ID, f.orgA.ID, 60)
	entry, ok := updated.StatusFor(f.orgA.ID)
	require.True(t, ok)
	assert.Equal(t, "waiting for documents", entry.Comment)
	assert.Equal(t, 60, entry.CompletionPercentage)

	_, err = f.tasks.UpdateOrganizationStatus(f.ctx, 999, f.orgA.ID, OrganizationStatusInput{CompletionPercentage: 10})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.tasks.UpdateOrganizationStatus(f.ctx, task.ID, 999, OrganizationStatusInput{CompletionPercentage: 10})
	assert.ErrorIs(t, err, ErrUnknownOrganization)
}

func TestListTasks_Filters(t *testing.T) {
	f := relationalFixture(t)

	create := func(title, assignedBy, start, end string, orgIDs ...uint64) *models.Task {
		task, err := f.tasks.CreateTask(f.ctx, CreateTaskInput{
			Title:           title,
			Description:     "about " + title,
			OrganizationIDs: orgIDs,
			StartDate:       date(start),
			EndDate:         date(end),
			AssignedBy:      assignedBy,
		})
		require.NoError(t, err)
		return task
	}

	vaccination := create("Vaccination", "Ivanova", "2024-01-01", "2024-01-31", f.orgA.ID)
	audit := create("Audit", "Petrov", "2024-02-01", "2024-02-29", f.orgB.ID, f.orgKDC.ID)
	training := create("Training", "Ivanova", "2024-03-01", "2024-04-30", f.orgKDC.ID)
	f.report(t, vaccination.ID, f.orgA.ID, 100)

	ids := func(filter TaskFilter) []uint64 {
		tasks, err := f.tasks.ListTasks(f.ctx, filter)
		require.NoError(t, err)
		out := []uint64{}
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}

	yes, no := true, false
	feb1, feb15, mar15 := date("2024-02-01"), date("2024-02-15"), date("2024-03-15")

	assert.Equal(t, []uint64{vaccination.ID}, ids(TaskFilter{Completed: &yes}))
	assert.Equal(t, []uint64{audit.ID, training.ID}, ids(TaskFilter{Completed: &no}))
	assert.Equal(t, []uint64{audit.ID, training.ID}, ids(TaskFilter{OrganizationID: f.orgKDC.ID}))
	assert.Equal(t, []uint64{vaccination.ID, training.ID}, ids(TaskFilter{AssignedBy: "Ivanova"}))
	assert.Equal(t, []uint64{audit.ID, training.ID}, ids(TaskFilter{From: &feb1}))
	assert.Equal(t, []uint64{vaccination.ID, audit.ID}, ids(TaskFilter{To: &feb1}))
	assert.Equal(t, []uint64{audit.ID, training.ID}, ids(TaskFilter{From: &feb15, To: &mar15}))
	assert.Equal(t, []uint64{training.ID}, ids(TaskFilter{Search: "TRAIN"}))
	assert.Equal(t, []uint64{vaccination.ID}, ids(TaskFilter{Search: "org a"}))
	assert.Equal(t, []uint64{audit.ID, training.ID, vaccination.ID}, ids(TaskFilter{SortBy: TaskSortTitle}))
	assert.Equal(t, []uint64{training.ID, audit.ID, vaccination.ID}, ids(TaskFilter{SortBy: TaskSortEndDate, Desc: true}))

	_, err := f.tasks.ListTasks(f.ctx, TaskFilter{SortBy: "priority"})
	assert.ErrorIs(t, err, ErrInvalidSort)

	names, err := f.tasks.ListAssigners(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ivanova", "Petrov"}, names)
}

func TestDashboardStats(t *testing.T) {
	f := relationalFixture(t)

	f.createBulk(t, "Overdue", f.orgA.ID)
	done := f.createBulk(t, "Done", f.orgB.ID)
	f.report(t, done.ID, f.orgB.ID, 100)

	in := validInput(f.orgA.ID)
	in.EndDate = date("2024-12-31")
	_, err := f.tasks.CreateTask(f.ctx, in)
	require.NoError(t, err)

	stats, err := f.tasks.DashboardStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{
		TasksTotal:      3,
		TasksCompleted:  1,
		TasksInProgress: 2,
		TasksOverdue:    1,
		CompletedRate:   33,
		InProgressRate:  67,
		OverdueRate:     50,
	}, *stats)
}
