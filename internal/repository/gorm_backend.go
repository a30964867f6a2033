package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yukikurage/mo-task-monitor/internal/config"
	"github.com/yukikurage/mo-task-monitor/internal/database"
	"github.com/yukikurage/mo-task-monitor/internal/seed"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// handle guards the live connection so an import can swap it.
type handle struct {
	mu sync.RWMutex
	db *gorm.DB
}

func newHandle(db *gorm.DB) *handle {
	return &handle{db: db}
}

func (h *handle) with(ctx context.Context, fn func(db *gorm.DB) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.db.WithContext(ctx))
}

// GormBackend is the relational Backend.
type GormBackend struct {
	h          *handle
	sqlitePath string
	gormConfig *gorm.Config
	seed       seed.Bundle

	users *GormUserRepository
	orgs  *GormOrganizationRepository
	tasks *GormTaskRepository
}

// GormOptions configures a GormBackend.
type GormOptions struct {
	// SQLitePath is the live database file. Export and Import require it.
	SQLitePath string
	GormConfig *gorm.Config
	Seed       seed.Bundle
}

// NewGormBackend wraps an open database.
func NewGormBackend(db *gorm.DB, opts GormOptions) *GormBackend {
	h := newHandle(db)
	return &GormBackend{
		h:          h,
		sqlitePath: opts.SQLitePath,
		gormConfig: opts.GormConfig,
		seed:       opts.Seed,
		users:      &GormUserRepository{h: h},
		orgs:       &GormOrganizationRepository{h: h},
		tasks:      &GormTaskRepository{h: h},
	}
}

// OpenGormBackend connects to the configured relational database.
func OpenGormBackend(cfg *config.Config, bundle seed.Bundle) (*GormBackend, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	opts := GormOptions{
		GormConfig: &gorm.Config{Logger: database.Logger(cfg)},
		Seed:       bundle,
	}
	if cfg.DBDriver == config.DriverSQLite {
		opts.SQLitePath = cfg.SQLitePath
	}
	return NewGormBackend(db, opts), nil
}

func (b *GormBackend) Name() string { return "relational" }

func (b *GormBackend) Users() UserRepository                 { return b.users }
func (b *GormBackend) Organizations() OrganizationRepository { return b.orgs }
func (b *GormBackend) Tasks() TaskRepository                 { return b.tasks }

// Initialize creates and seeds the schema. It does nothing when all tables exist.
func (b *GormBackend) Initialize(ctx context.Context) error {
	b.h.mu.Lock()
	defer b.h.mu.Unlock()

	db := b.h.db.WithContext(ctx)
	if database.HasSchema(db) {
		return nil
	}
	if err := b.createSchema(db); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	return nil
}

func (b *GormBackend) createSchema(db *gorm.DB) error {
	if err := database.Migrate(db); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if len(b.seed.Users) > 0 {
			users := append(b.seed.Users[:0:0], b.seed.Users...)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error; err != nil {
				return fmt.Errorf("failed to seed users: %w", err)
			}
		}
		if len(b.seed.Organizations) > 0 {
			orgs := append(b.seed.Organizations[:0:0], b.seed.Organizations...)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&orgs).Error; err != nil {
				return fmt.Errorf("failed to seed organizations: %w", err)
			}
		}
		return nil
	})
}

// Ping checks the connection.
func (b *GormBackend) Ping(ctx context.Context) error {
	return b.h.with(ctx, func(db *gorm.DB) error {
		if err := database.Ping(ctx, db); err != nil {
			return Unavailable("ping", err)
		}
		return nil
	})
}

// Close releases the connection pool.
func (b *GormBackend) Close() error {
	b.h.mu.Lock()
	defer b.h.mu.Unlock()
	return database.Close(b.h.db)
}

// Reset drops every table and recreates the seeded schema.
func (b *GormBackend) Reset(ctx context.Context) error {
	b.h.mu.Lock()
	defer b.h.mu.Unlock()

	db := b.h.db.WithContext(ctx)
	if err := database.DropSchema(db); err != nil {
		return Unavailable("reset", err)
	}
	if err := b.createSchema(db); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	return nil
}

// Export streams a snapshot of the SQLite file.
func (b *GormBackend) Export(ctx context.Context, w io.Writer) (int64, error) {
	if b.sqlitePath == "" {
		return 0, ErrUnsupported
	}

	var n int64
	err := b.h.with(ctx, func(db *gorm.DB) error {
		var err error
		n, err = database.ExportSQLite(ctx, db, w)
		return err
	})
	if err != nil {
		return n, Unavailable("export", err)
	}
	return n, nil
}

// Import validates the image in r and swaps it in as the live database.
// An invalid image leaves the live database untouched.
func (b *GormBackend) Import(ctx context.Context, r io.Reader) error {
	if b.sqlitePath == "" {
		return ErrUnsupported
	}

	staged, err := database.StageImage(r, b.sqlitePath)
	if err != nil {
		if errors.Is(err, database.ErrNotSQLite) || errors.Is(err, database.ErrIncompleteSchema) {
			return fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		return Unavailable("import", err)
	}

	b.h.mu.Lock()
	defer b.h.mu.Unlock()

	if err := database.Close(b.h.db); err != nil {
		os.Remove(staged)
		return Unavailable("import", err)
	}
	if err := os.Rename(staged, b.sqlitePath); err != nil {
		os.Remove(staged)
		if reopenErr := b.reopen(); reopenErr != nil {
			return Unavailable("import", errors.Join(err, reopenErr))
		}
		return Unavailable("import", err)
	}
	if err := b.reopen(); err != nil {
		return Unavailable("import", err)
	}
	return nil
}

func (b *GormBackend) reopen() error {
	db, err := database.OpenSQLite(b.sqlitePath, b.gormConfig)
	if err != nil {
		return err
	}
	b.h.db = db
	return nil
}
