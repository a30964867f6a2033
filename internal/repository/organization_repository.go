package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"gorm.io/gorm"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	h *handle
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uint64) (*models.Organization, error) {
	var org models.Organization
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.First(&org, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, Unavailable("find organization", err)
	}
	return &org, nil
}

// List returns all organizations sorted by name
func (r *GormOrganizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Order("name ASC").Order("id ASC").Find(&orgs).Error
	})
	if err != nil {
		return nil, Unavailable("list organizations", err)
	}
	return orgs, nil
}
