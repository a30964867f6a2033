package database

import (
	"gorm.io/gorm"
)

// WithStatuses preloads a task's organization status entries in a stable order.
func WithStatuses(db *gorm.DB) *gorm.DB {
	return db.Preload("Statuses", func(db *gorm.DB) *gorm.DB {
		return db.Order("task_organization_statuses.organization_id ASC")
	})
}

// OrderedByID sorts rows by primary key.
func OrderedByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
