package repository

import (
	"context"
	"io"

	"github.com/yukikurage/mo-task-monitor/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByUsername finds a user by exact username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// List returns every user ordered by ID
	List(ctx context.Context) ([]models.User, error)
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// FindByID finds an organization by ID
	FindByID(ctx context.Context, id uint64) (*models.Organization, error)

	// List returns every organization ordered by name
	List(ctx context.Context) ([]models.Organization, error)
}

// TaskRepository defines the interface for task data access.
// Every task returned carries its organization status entries.
type TaskRepository interface {
	// List returns every task ordered by ID
	List(ctx context.Context) ([]models.Task, error)

	// ListByOrganization returns the tasks that reference an organization,
	// either as primary organization or through a status entry
	ListByOrganization(ctx context.Context, orgID uint64) ([]models.Task, error)

	// FindByID finds a task by ID
	FindByID(ctx context.Context, id uint64) (*models.Task, error)

	// Create stores a new task together with its status entries and assigns IDs
	Create(ctx context.Context, task *models.Task) error

	// Update overwrites the task's scalar fields. When replaceStatuses is set,
	// the stored status entries are replaced by task.Statuses in the same write.
	Update(ctx context.Context, task *models.Task, replaceStatuses bool) error

	// Delete removes a task and its status entries
	Delete(ctx context.Context, id uint64) error

	// UpsertOrganizationStatus inserts or replaces the entry for
	// (taskID, status.OrganizationID) and recomputes the task's overall
	// percentage atomically. It returns the refreshed task.
	UpsertOrganizationStatus(ctx context.Context, taskID uint64, status models.TaskOrganizationStatus) (*models.Task, error)

	// ReplaceAll swaps the whole task set for tasks, preserving their IDs
	ReplaceAll(ctx context.Context, tasks []models.Task) error
}

// Backend is a complete storage engine.
type Backend interface {
	// Name identifies the backend in logs and health output
	Name() string

	// Initialize creates the schema and seed data unless already present
	Initialize(ctx context.Context) error

	// Ping checks that the engine is reachable
	Ping(ctx context.Context) error

	Close() error

	Users() UserRepository
	Organizations() OrganizationRepository
	Tasks() TaskRepository
}

// Resetter is implemented by backends that can drop all data and re-seed.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ImageStore is implemented by backends that can export and import a
// database image.
type ImageStore interface {
	Export(ctx context.Context, w io.Writer) (int64, error)
	Import(ctx context.Context, r io.Reader) error
}
