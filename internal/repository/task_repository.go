package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/database"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	h *handle
}

// List retrieves all tasks with their status entries
func (r *GormTaskRepository) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Scopes(database.WithStatuses, database.OrderedByID).Find(&tasks).Error
	})
	if err != nil {
		return nil, Unavailable("list tasks", err)
	}
	return tasks, nil
}

// ListByOrganization retrieves the tasks referencing an organization
func (r *GormTaskRepository) ListByOrganization(ctx context.Context, orgID uint64) ([]models.Task, error) {
	var tasks []models.Task
	err := r.h.with(ctx, func(db *gorm.DB) error {
		referenced := db.Model(&models.TaskOrganizationStatus{}).
			Select("task_id").
			Where("organization_id = ?", orgID)
		return db.Scopes(database.WithStatuses, database.OrderedByID).
			Where("organization_id = ? OR id IN (?)", orgID, referenced).
			Find(&tasks).Error
	})
	if err != nil {
		return nil, Unavailable("list tasks by organization", err)
	}
	return tasks, nil
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	var task *models.Task
	err := r.h.with(ctx, func(db *gorm.DB) error {
		var err error
		task, err = loadTask(db, id)
		return err
	})
	if err != nil {
		return nil, wrapTaskError("find task", err)
	}
	return task, nil
}

// Create creates a new task and its status entries in one transaction
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
				return err
			}
			if err := insertStatuses(tx, task.ID, task.Statuses); err != nil {
				return err
			}

			fresh, err := loadTask(tx, task.ID)
			if err != nil {
				return err
			}
			*task = *fresh
			return nil
		})
	})
	if err != nil {
		return Unavailable("create task", err)
	}
	return nil
}

// Update saves a task, replacing its status entries when asked
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task, replaceStatuses bool) error {
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrTaskNotFound
			}

			if err := tx.Omit(clause.Associations).Save(task).Error; err != nil {
				return err
			}

			if replaceStatuses {
				if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskOrganizationStatus{}).Error; err != nil {
					return err
				}
				if err := insertStatuses(tx, task.ID, task.Statuses); err != nil {
					return err
				}
			}

			fresh, err := loadTask(tx, task.ID)
			if err != nil {
				return err
			}
			// the caller's percentage may predate a concurrent status upsert
			if stored := fresh.CompletionPercentage; len(fresh.Statuses) > 0 {
				fresh.Recompute()
				if fresh.CompletionPercentage != stored {
					if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).
						UpdateColumn("completion_percentage", fresh.CompletionPercentage).Error; err != nil {
						return err
					}
				}
			}
			*task = *fresh
			return nil
		})
	})
	if err != nil {
		return wrapTaskError("update task", err)
	}
	return nil
}

// Delete removes a task; its status entries go with it
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) error {
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("task_id = ?", id).Delete(&models.TaskOrganizationStatus{}).Error; err != nil {
				return err
			}
			result := tx.Delete(&models.Task{}, id)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrTaskNotFound
			}
			return nil
		})
	})
	if err != nil {
		return wrapTaskError("delete task", err)
	}
	return nil
}

// UpsertOrganizationStatus writes one organization's entry and the task's
// recomputed percentage in a single transaction.
func (r *GormTaskRepository) UpsertOrganizationStatus(ctx context.Context, taskID uint64, status models.TaskOrganizationStatus) (*models.Task, error) {
	var task *models.Task
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrTaskNotFound
			}

			status.ID = 0
			status.TaskID = taskID
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "task_id"}, {Name: "organization_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"completion_percentage", "comment", "last_updated"}),
			}).Create(&status).Error
			if err != nil {
				return err
			}

			var statuses []models.TaskOrganizationStatus
			if err := tx.Where("task_id = ?", taskID).Find(&statuses).Error; err != nil {
				return err
			}

			err = tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
				"completion_percentage": models.RollupPercentage(statuses),
				"updated_at":            status.LastUpdated,
			}).Error
			if err != nil {
				return err
			}

			task, err = loadTask(tx, taskID)
			return err
		})
	})
	if err != nil {
		return nil, wrapTaskError("update organization status", err)
	}
	return task, nil
}

// ReplaceAll deletes every task and inserts tasks with their original IDs
func (r *GormTaskRepository) ReplaceAll(ctx context.Context, tasks []models.Task) error {
	err := r.h.with(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
			if err := all.Delete(&models.TaskOrganizationStatus{}).Error; err != nil {
				return err
			}
			if err := all.Delete(&models.Task{}).Error; err != nil {
				return err
			}

			for i := range tasks {
				task := tasks[i]
				if err := tx.Omit(clause.Associations).Create(&task).Error; err != nil {
					return err
				}
				if err := insertStatuses(tx, task.ID, task.Statuses); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return Unavailable("replace tasks", err)
	}
	return nil
}

func loadTask(db *gorm.DB, id uint64) (*models.Task, error) {
	var task models.Task
	if err := db.Scopes(database.WithStatuses).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func insertStatuses(tx *gorm.DB, taskID uint64, statuses []models.TaskOrganizationStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	rows := make([]models.TaskOrganizationStatus, len(statuses))
	for i, s := range statuses {
		s.ID = 0
		s.TaskID = taskID
		if s.LastUpdated.IsZero() {
			s.LastUpdated = time.Now().UTC()
		}
		rows[i] = s
	}
	return tx.Create(&rows).Error
}

func wrapTaskError(op string, err error) error {
	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTaskNotFound
	}
	return Unavailable(op, err)
}
