package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
)

// Organization statistics sort keys
const (
	OrgSortName              = "name"
	OrgSortTasksTotal        = "tasks_total"
	OrgSortTasksCompleted    = "tasks_completed"
	OrgSortTasksInProgress   = "tasks_in_progress"
	OrgSortTasksOverdue      = "tasks_overdue"
	OrgSortCompletionPercent = "completion_percent"
)

// OrganizationService handles organization business logic
type OrganizationService struct {
	orgRepo  repository.OrganizationRepository
	taskRepo repository.TaskRepository
	now      func() time.Time
}

// NewOrganizationService creates a new OrganizationService
func NewOrganizationService(orgRepo repository.OrganizationRepository, taskRepo repository.TaskRepository) *OrganizationService {
	return &OrganizationService{
		orgRepo:  orgRepo,
		taskRepo: taskRepo,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for overdue checks.
func (s *OrganizationService) WithClock(now func() time.Time) *OrganizationService {
	s.now = now
	return s
}

// ListOrganizations returns every organization sorted by name
func (s *OrganizationService) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.orgRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	sortOrganizations(orgs)
	return orgs, nil
}

// GetOrganization returns one organization
func (s *OrganizationService) GetOrganization(ctx context.Context, orgID uint64) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrganizationNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

// OrganizationDetail is an organization with the tasks that reference it.
type OrganizationDetail struct {
	Stats OrganizationStats
	Tasks []models.Task
}

// GetOrganizationDetail returns the organization's rollup and its tasks
func (s *OrganizationService) GetOrganizationDetail(ctx context.Context, orgID uint64) (*OrganizationDetail, error) {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization tasks: %w", err)
	}

	return &OrganizationDetail{
		Stats: ComputeOrganizationStats(*org, tasks, s.now()),
		Tasks: tasks,
	}, nil
}

// StatsQuery selects and orders organization rollups.
type StatsQuery struct {
	// Search matches a case-insensitive substring of the name
	Search string
	// Type keeps only organizations whose name carries the type code
	Type          models.OrganizationType
	OnlyWithTasks bool
	SortBy        string
	Desc          bool
}

// Stats computes a rollup for every organization matching the query
func (s *OrganizationService) Stats(ctx context.Context, query StatsQuery) ([]OrganizationStats, error) {
	less, err := organizationStatsOrder(query.SortBy)
	if err != nil {
		return nil, err
	}

	orgs, err := s.orgRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := s.now()
	search := strings.ToLower(strings.TrimSpace(query.Search))

	result := make([]OrganizationStats, 0, len(orgs))
	for _, org := range orgs {
		if search != "" && !strings.Contains(strings.ToLower(org.Name), search) {
			continue
		}
		if query.Type != "" && !org.HasType(query.Type) {
			continue
		}

		stats := ComputeOrganizationStats(org, tasks, now)
		if query.OnlyWithTasks && stats.TasksTotal == 0 {
			continue
		}
		result = append(result, stats)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if query.Desc {
			return less(result[j], result[i])
		}
		return less(result[i], result[j])
	})
	return result, nil
}

func organizationStatsOrder(key string) (func(a, b OrganizationStats) bool, error) {
	byName := func(a, b OrganizationStats) bool { return a.Organization.Name < b.Organization.Name }
	byInt := func(value func(OrganizationStats) int) func(a, b OrganizationStats) bool {
		return func(a, b OrganizationStats) bool {
			if value(a) != value(b) {
				return value(a) < value(b)
			}
			return byName(a, b)
		}
	}

	switch key {
	case "", OrgSortName:
		return byName, nil
	case OrgSortTasksTotal:
		return byInt(func(s OrganizationStats) int { return s.TasksTotal }), nil
	case OrgSortTasksCompleted:
		return byInt(func(s OrganizationStats) int { return s.TasksCompleted }), nil
	case OrgSortTasksInProgress:
		return byInt(func(s OrganizationStats) int { return s.TasksInProgress }), nil
	case OrgSortTasksOverdue:
		return byInt(func(s OrganizationStats) int { return s.TasksOverdue }), nil
	case OrgSortCompletionPercent:
		return byInt(func(s OrganizationStats) int { return s.CompletionPercent }), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, key)
	}
}

func sortOrganizations(orgs []models.Organization) {
	sort.SliceStable(orgs, func(i, j int) bool {
		if orgs[i].Name != orgs[j].Name {
			return orgs[i].Name < orgs[j].Name
		}
		return orgs[i].ID < orgs[j].ID
	})
}

// Now exposes the service clock to callers that derive display values.
func (s *OrganizationService) Now() time.Time {
	return s.now()
}
