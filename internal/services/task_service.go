package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/constants"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
)

// Task list sort keys
const (
	TaskSortID                   = "id"
	TaskSortTitle                = "title"
	TaskSortStartDate            = "start_date"
	TaskSortEndDate              = "end_date"
	TaskSortCompletionPercentage = "completion_percentage"
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo repository.TaskRepository
	orgRepo  repository.OrganizationRepository
	now      func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, orgRepo repository.OrganizationRepository) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		orgRepo:  orgRepo,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for timestamps and overdue checks.
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	// OrganizationID is the target of a single-organization task.
	OrganizationID uint64
	// OrganizationIDs, when set, creates one 0% status entry per organization
	// and makes the first one primary.
	OrganizationIDs      []uint64
	StartDate            time.Time
	EndDate              time.Time
	AssignedBy           string
	CompletionPercentage int
	Status               models.TaskStatus
	Result               string
	Comment              string
}

// StatusInput is one organization's entry in a full status replacement.
type StatusInput struct {
	OrganizationID       uint64
	CompletionPercentage int
	Comment              string
}

// UpdateTaskInput represents a partial task update. Nil fields are kept.
type UpdateTaskInput struct {
	Title                *string
	Description          *string
	OrganizationID       *uint64
	StartDate            *time.Time
	EndDate              *time.Time
	AssignedBy           *string
	CompletionPercentage *int
	Status               *models.TaskStatus
	Result               *string
	Comment              *string
	// Statuses, when non-nil, replaces every status entry of the task.
	Statuses *[]StatusInput
}

// OrganizationStatusInput is a single organization's progress report.
type OrganizationStatusInput struct {
	CompletionPercentage int
	// Comment keeps the stored comment when nil.
	Comment *string
}

// TaskFilter selects and orders tasks.
type TaskFilter struct {
	Completed *bool
	// OrganizationID matches the primary organization or any status entry.
	OrganizationID uint64
	AssignedBy     string
	// From and To keep tasks whose date range overlaps [From, To].
	From   *time.Time
	To     *time.Time
	Search string
	SortBy string
	Desc   bool
}

// ListTasks returns the tasks matching filter
func (s *TaskService) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	less, err := taskOrder(filter.SortBy)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var orgNames map[uint64]string
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search != "" {
		orgNames, err = s.organizationNames(ctx)
		if err != nil {
			return nil, err
		}
	}

	filtered := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if filter.Completed != nil && task.IsCompleted() != *filter.Completed {
			continue
		}
		if filter.OrganizationID != 0 && !task.References(filter.OrganizationID) {
			continue
		}
		if filter.AssignedBy != "" && task.AssignedBy != filter.AssignedBy {
			continue
		}
		if filter.From != nil && task.EndDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && task.StartDate.After(*filter.To) {
			continue
		}
		if search != "" && !matchesSearch(task, orgNames[task.OrganizationID], search) {
			continue
		}
		filtered = append(filtered, task)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filter.Desc {
			return less(filtered[j], filtered[i])
		}
		return less(filtered[i], filtered[j])
	})
	return filtered, nil
}

// ListAssigners returns the distinct assigned-by names, sorted
func (s *TaskService) ListAssigners(ctx context.Context) ([]string, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	seen := make(map[string]struct{})
	names := []string{}
	for _, task := range tasks {
		if _, ok := seen[task.AssignedBy]; ok || task.AssignedBy == "" {
			continue
		}
		seen[task.AssignedBy] = struct{}{}
		names = append(names, task.AssignedBy)
	}
	sort.Strings(names)
	return names, nil
}

// GetTask returns a task with its status entries
func (s *TaskService) GetTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// CreateTask validates input and stores a new task with its status entries
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, ErrDescriptionRequired
	}
	assignedBy := strings.TrimSpace(input.AssignedBy)
	if assignedBy == "" {
		return nil, ErrAssignedByRequired
	}
	if err := validateDates(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	if err := validatePercentage(input.CompletionPercentage); err != nil {
		return nil, err
	}

	orgIDs := uniqueUint64(input.OrganizationIDs)
	bulk := len(orgIDs) > 0
	if !bulk {
		if input.OrganizationID == 0 {
			return nil, ErrOrganizationRequired
		}
		orgIDs = []uint64{input.OrganizationID}
	}
	if err := s.ensureOrganizationsExist(ctx, orgIDs); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &models.Task{
		Title:          title,
		Description:    input.Description,
		OrganizationID: orgIDs[0],
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		AssignedBy:     assignedBy,
		Result:         input.Result,
		Comment:        input.Comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if bulk {
		for _, orgID := range orgIDs {
			task.Statuses = append(task.Statuses, models.TaskOrganizationStatus{
				OrganizationID: orgID,
				LastUpdated:    now,
			})
		}
	} else {
		task.Statuses = []models.TaskOrganizationStatus{{
			OrganizationID:       orgIDs[0],
			CompletionPercentage: input.CompletionPercentage,
			LastUpdated:          now,
		}}
	}
	task.Recompute()

	status, err := resolveStatus(input.Status, task.CompletionPercentage)
	if err != nil {
		return nil, err
	}
	task.Status = status

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// UpdateTask merges input into the stored task
func (s *TaskService) UpdateTask(ctx context.Context, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = title
	}
	if input.Description != nil {
		if strings.TrimSpace(*input.Description) == "" {
			return nil, ErrDescriptionRequired
		}
		task.Description = *input.Description
	}
	if input.AssignedBy != nil {
		assignedBy := strings.TrimSpace(*input.AssignedBy)
		if assignedBy == "" {
			return nil, ErrAssignedByRequired
		}
		task.AssignedBy = assignedBy
	}
	if input.StartDate != nil {
		task.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		task.EndDate = *input.EndDate
	}
	if err := validateDates(task.StartDate, task.EndDate); err != nil {
		return nil, err
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		task.Status = *input.Status
	}
	if input.Result != nil {
		task.Result = *input.Result
	}
	if input.Comment != nil {
		task.Comment = *input.Comment
	}

	now := s.now().UTC()
	replace := false

	if input.OrganizationID != nil && *input.OrganizationID != task.OrganizationID {
		if err := s.ensureOrganizationsExist(ctx, []uint64{*input.OrganizationID}); err != nil {
			return nil, err
		}
		if primaryOnly(task) && input.Statuses == nil {
			task.Statuses[0].OrganizationID = *input.OrganizationID
			task.Statuses[0].LastUpdated = now
			replace = true
		}
		task.OrganizationID = *input.OrganizationID
	}

	switch {
	case input.Statuses != nil:
		statuses, err := s.buildStatuses(ctx, *input.Statuses, now)
		if err != nil {
			return nil, err
		}
		task.Statuses = statuses
		if len(statuses) == 0 && input.CompletionPercentage != nil {
			if err := validatePercentage(*input.CompletionPercentage); err != nil {
				return nil, err
			}
			task.CompletionPercentage = *input.CompletionPercentage
		}
		task.Recompute()
		replace = true

	case input.CompletionPercentage != nil:
		pct := *input.CompletionPercentage
		if err := validatePercentage(pct); err != nil {
			return nil, err
		}
		switch {
		case len(task.Statuses) == 0:
			task.CompletionPercentage = pct
		case primaryOnly(task):
			if task.Statuses[0].CompletionPercentage != pct {
				task.Statuses[0].CompletionPercentage = pct
				task.Statuses[0].LastUpdated = now
				replace = true
			}
			task.CompletionPercentage = pct
		case pct != task.CompletionPercentage:
			return nil, ErrDerivedPercentage
		}
	}

	if err := s.taskRepo.Update(ctx, task, replace); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task and its status entries
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint64) error {
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// UpdateOrganizationStatus records one organization's progress and returns
// the task with its recomputed overall percentage. Input is validated before
// anything is written.
func (s *TaskService) UpdateOrganizationStatus(ctx context.Context, taskID, orgID uint64, input OrganizationStatusInput) (*models.Task, error) {
	if err := validatePercentage(input.CompletionPercentage); err != nil {
		return nil, err
	}
	if err := s.ensureOrganizationsExist(ctx, []uint64{orgID}); err != nil {
		return nil, err
	}

	entry := models.TaskOrganizationStatus{
		OrganizationID:       orgID,
		CompletionPercentage: input.CompletionPercentage,
		LastUpdated:          s.now().UTC(),
	}
	if input.Comment != nil {
		entry.Comment = *input.Comment
	} else {
		task, err := s.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if existing, ok := task.StatusFor(orgID); ok {
			entry.Comment = existing.Comment
		}
	}

	task, err := s.taskRepo.UpsertOrganizationStatus(ctx, taskID, entry)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update organization status: %w", err)
	}
	return task, nil
}

// DashboardStats summarizes all tasks
func (s *TaskService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	stats := ComputeDashboardStats(tasks, s.now())
	return &stats, nil
}

// Now exposes the service clock to callers that derive display values.
func (s *TaskService) Now() time.Time {
	return s.now()
}

func (s *TaskService) buildStatuses(ctx context.Context, inputs []StatusInput, now time.Time) ([]models.TaskOrganizationStatus, error) {
	seen := make(map[uint64]bool, len(inputs))
	orgIDs := make([]uint64, 0, len(inputs))
	statuses := make([]models.TaskOrganizationStatus, 0, len(inputs))

	for _, in := range inputs {
		if seen[in.OrganizationID] {
			return nil, ErrDuplicateStatus
		}
		seen[in.OrganizationID] = true

		if err := validatePercentage(in.CompletionPercentage); err != nil {
			return nil, err
		}
		orgIDs = append(orgIDs, in.OrganizationID)
		statuses = append(statuses, models.TaskOrganizationStatus{
			OrganizationID:       in.OrganizationID,
			CompletionPercentage: in.CompletionPercentage,
			Comment:              in.Comment,
			LastUpdated:          now,
		})
	}

	if err := s.ensureOrganizationsExist(ctx, orgIDs); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (s *TaskService) ensureOrganizationsExist(ctx context.Context, orgIDs []uint64) error {
	for _, id := range orgIDs {
		if _, err := s.orgRepo.FindByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrOrganizationNotFound) {
				return fmt.Errorf("%w: %d", ErrUnknownOrganization, id)
			}
			return fmt.Errorf("failed to find organization: %w", err)
		}
	}
	return nil
}

func (s *TaskService) organizationNames(ctx context.Context) (map[uint64]string, error) {
	orgs, err := s.orgRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	names := make(map[uint64]string, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org.Name
	}
	return names, nil
}

// primaryOnly reports whether the task's only status entry belongs to its
// primary organization.
func primaryOnly(task *models.Task) bool {
	return len(task.Statuses) == 1 && task.Statuses[0].OrganizationID == task.OrganizationID
}

func matchesSearch(task models.Task, orgName, search string) bool {
	for _, field := range []string{task.Title, task.Description, task.AssignedBy, orgName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func taskOrder(key string) (func(a, b models.Task) bool, error) {
	byID := func(a, b models.Task) bool { return a.ID < b.ID }
	then := func(primary func(a, b models.Task) int) func(a, b models.Task) bool {
		return func(a, b models.Task) bool {
			if c := primary(a, b); c != 0 {
				return c < 0
			}
			return byID(a, b)
		}
	}

	switch key {
	case "", TaskSortID:
		return byID, nil
	case TaskSortTitle:
		return then(func(a, b models.Task) int { return strings.Compare(a.Title, b.Title) }), nil
	case TaskSortStartDate:
		return then(func(a, b models.Task) int { return a.StartDate.Compare(b.StartDate) }), nil
	case TaskSortEndDate:
		return then(func(a, b models.Task) int { return a.EndDate.Compare(b.EndDate) }), nil
	case TaskSortCompletionPercentage:
		return then(func(a, b models.Task) int { return a.CompletionPercentage - b.CompletionPercentage }), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, key)
	}
}

func validatePercentage(pct int) error {
	if pct < constants.MinCompletionPercentage || pct > constants.MaxCompletionPercentage {
		return ErrInvalidPercentage
	}
	return nil
}

func validateDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrDatesRequired
	}
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	return nil
}

// resolveStatus keeps an explicit label or derives one from the percentage.
func resolveStatus(status models.TaskStatus, pct int) (models.TaskStatus, error) {
	if status != "" {
		if !status.Valid() {
			return "", ErrInvalidStatus
		}
		return status, nil
	}

	switch {
	case pct == 0:
		return models.TaskStatusNotStarted, nil
	case pct == models.TaskCompletePercentage:
		return models.TaskStatusCompleted, nil
	default:
		return models.TaskStatusInProgress, nil
	}
}

func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
