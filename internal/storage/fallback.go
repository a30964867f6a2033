package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"go.uber.org/zap"
)

// Fallback serves every call from the primary backend and retries it on the
// secondary when the primary fails for a reason other than the request itself.
// Writes served by the secondary mark the pair as diverged until reconciled.
type Fallback struct {
	primary   repository.Backend
	secondary repository.Backend
	log       *zap.Logger
	diverged  atomic.Bool
}

// NewFallback pairs two backends.
func NewFallback(primary, secondary repository.Backend, log *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *Fallback) Primary() repository.Backend   { return f.primary }
func (f *Fallback) Secondary() repository.Backend { return f.secondary }

// Diverged reports whether a write has landed on the secondary only.
func (f *Fallback) Diverged() bool {
	return f.diverged.Load()
}

// ClearDivergence resets the divergence flag after reconciliation.
func (f *Fallback) ClearDivergence() {
	f.diverged.Store(false)
}

func (f *Fallback) Users() repository.UserRepository                 { return fallbackUsers{f} }
func (f *Fallback) Organizations() repository.OrganizationRepository { return fallbackOrganizations{f} }
func (f *Fallback) Tasks() repository.TaskRepository                 { return fallbackTasks{f} }

// Initialize prepares both backends. Only a failure of both is fatal.
func (f *Fallback) Initialize(ctx context.Context) error {
	primaryErr := f.primary.Initialize(ctx)
	if primaryErr != nil {
		f.log.Warn("Primary backend failed to initialize", zap.String("backend", f.primary.Name()), zap.Error(primaryErr))
	}
	secondaryErr := f.secondary.Initialize(ctx)
	if secondaryErr != nil {
		f.log.Warn("Secondary backend failed to initialize", zap.String("backend", f.secondary.Name()), zap.Error(secondaryErr))
	}
	if primaryErr != nil && secondaryErr != nil {
		return errors.Join(primaryErr, secondaryErr)
	}
	return nil
}

// Ping succeeds while at least one backend answers.
func (f *Fallback) Ping(ctx context.Context) error {
	_, err := call(ctx, f, "ping", false, func(b repository.Backend) (struct{}, error) {
		return struct{}{}, b.Ping(ctx)
	})
	return err
}

func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

// Reset resets both backends and clears the divergence flag.
func (f *Fallback) Reset(ctx context.Context) error {
	for _, b := range []repository.Backend{f.primary, f.secondary} {
		r, ok := b.(repository.Resetter)
		if !ok {
			return fmt.Errorf("reset %s: %w", b.Name(), repository.ErrUnsupported)
		}
		if err := r.Reset(ctx); err != nil {
			return err
		}
	}
	f.ClearDivergence()
	return nil
}

// Export and Import operate on the primary's image only.
func (f *Fallback) Export(ctx context.Context, w io.Writer) (int64, error) {
	store, ok := f.primary.(repository.ImageStore)
	if !ok {
		return 0, repository.ErrUnsupported
	}
	return store.Export(ctx, w)
}

func (f *Fallback) Import(ctx context.Context, r io.Reader) error {
	store, ok := f.primary.(repository.ImageStore)
	if !ok {
		return repository.ErrUnsupported
	}
	if err := store.Import(ctx, r); err != nil {
		return err
	}
	f.markDiverged("import")
	return nil
}

func (f *Fallback) markDiverged(op string) {
	if !f.diverged.Swap(true) {
		f.log.Warn("Backends diverged; reconcile to restore consistency", zap.String("op", op))
	}
}

func call[T any](ctx context.Context, f *Fallback, op string, write bool, fn func(repository.Backend) (T, error)) (T, error) {
	v, err := fn(f.primary)
	if err == nil || repository.IsDomainError(err) || ctx.Err() != nil {
		return v, err
	}

	f.log.Warn("Primary backend failed, retrying on secondary",
		zap.String("op", op),
		zap.String("backend", f.primary.Name()),
		zap.Error(err),
	)

	v, secondaryErr := fn(f.secondary)
	if secondaryErr != nil {
		return v, fmt.Errorf("%s: both backends failed: %w", op, errors.Join(err, secondaryErr))
	}
	if write {
		f.markDiverged(op)
	}
	return v, nil
}

type fallbackUsers struct{ f *Fallback }

func (r fallbackUsers) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	return call(ctx, r.f, "find user", false, func(b repository.Backend) (*models.User, error) {
		return b.Users().FindByID(ctx, id)
	})
}

func (r fallbackUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return call(ctx, r.f, "find user", false, func(b repository.Backend) (*models.User, error) {
		return b.Users().FindByUsername(ctx, username)
	})
}

func (r fallbackUsers) List(ctx context.Context) ([]models.User, error) {
	return call(ctx, r.f, "list users", false, func(b repository.Backend) ([]models.User, error) {
		return b.Users().List(ctx)
	})
}

type fallbackOrganizations struct{ f *Fallback }

func (r fallbackOrganizations) FindByID(ctx context.Context, id uint64) (*models.Organization, error) {
	return call(ctx, r.f, "find organization", false, func(b repository.Backend) (*models.Organization, error) {
		return b.Organizations().FindByID(ctx, id)
	})
}

func (r fallbackOrganizations) List(ctx context.Context) ([]models.Organization, error) {
	return call(ctx, r.f, "list organizations", false, func(b repository.Backend) ([]models.Organization, error) {
		return b.Organizations().List(ctx)
	})
}

type fallbackTasks struct{ f *Fallback }

func (r fallbackTasks) List(ctx context.Context) ([]models.Task, error) {
	return call(ctx, r.f, "list tasks", false, func(b repository.Backend) ([]models.Task, error) {
		return b.Tasks().List(ctx)
	})
}

func (r fallbackTasks) ListByOrganization(ctx context.Context, orgID uint64) ([]models.Task, error) {
	return call(ctx, r.f, "list tasks by organization", false, func(b repository.Backend) ([]models.Task, error) {
		return b.Tasks().ListByOrganization(ctx, orgID)
	})
}

func (r fallbackTasks) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	return call(ctx, r.f, "find task", false, func(b repository.Backend) (*models.Task, error) {
		return b.Tasks().FindByID(ctx, id)
	})
}

// Create hands each backend its own copy so a failed primary attempt
// cannot leak IDs into the secondary write.
func (r fallbackTasks) Create(ctx context.Context, task *models.Task) error {
	original := cloneTask(task)
	_, err := call(ctx, r.f, "create task", true, func(b repository.Backend) (struct{}, error) {
		attempt := cloneTask(&original)
		if err := b.Tasks().Create(ctx, &attempt); err != nil {
			return struct{}{}, err
		}
		*task = attempt
		return struct{}{}, nil
	})
	return err
}

func (r fallbackTasks) Update(ctx context.Context, task *models.Task, replaceStatuses bool) error {
	original := cloneTask(task)
	_, err := call(ctx, r.f, "update task", true, func(b repository.Backend) (struct{}, error) {
		attempt := cloneTask(&original)
		if err := b.Tasks().Update(ctx, &attempt, replaceStatuses); err != nil {
			return struct{}{}, err
		}
		*task = attempt
		return struct{}{}, nil
	})
	return err
}

func (r fallbackTasks) Delete(ctx context.Context, id uint64) error {
	_, err := call(ctx, r.f, "delete task", true, func(b repository.Backend) (struct{}, error) {
		return struct{}{}, b.Tasks().Delete(ctx, id)
	})
	return err
}

func (r fallbackTasks) UpsertOrganizationStatus(ctx context.Context, taskID uint64, status models.TaskOrganizationStatus) (*models.Task, error) {
	return call(ctx, r.f, "update organization status", true, func(b repository.Backend) (*models.Task, error) {
		return b.Tasks().UpsertOrganizationStatus(ctx, taskID, status)
	})
}

func (r fallbackTasks) ReplaceAll(ctx context.Context, tasks []models.Task) error {
	_, err := call(ctx, r.f, "replace tasks", true, func(b repository.Backend) (struct{}, error) {
		return struct{}{}, b.Tasks().ReplaceAll(ctx, tasks)
	})
	return err
}

func cloneTask(task *models.Task) models.Task {
	c := *task
	c.Statuses = append([]models.TaskOrganizationStatus(nil), task.Statuses...)
	return c
}
