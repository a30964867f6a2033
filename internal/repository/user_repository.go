package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/mo-task-monitor/internal/database"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	h *handle
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.First(&user, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Unavailable("find user", err)
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Where("username = ?", username).First(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Unavailable("find user", err)
	}
	return &user, nil
}

// List returns all users
func (r *GormUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Scopes(database.OrderedByID).Find(&users).Error
	})
	if err != nil {
		return nil, Unavailable("list users", err)
	}
	return users, nil
}
