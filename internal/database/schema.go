package database

import (
	"fmt"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"gorm.io/gorm"
)

// Tables lists the relational schema in dependency order.
var Tables = []string{"users", "organizations", "tasks", "task_organization_statuses"}

// HasSchema reports whether every table of the schema exists.
func HasSchema(db *gorm.DB) bool {
	migrator := db.Migrator()
	for _, table := range Tables {
		if !migrator.HasTable(table) {
			return false
		}
	}
	return true
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Task{},
		&models.TaskOrganizationStatus{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	return nil
}

// AddIndexes creates the lookup indexes not expressed in model tags.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		{"task_organization_statuses", "idx_task_org_statuses_organization_id", "organization_id"},
		{"tasks", "idx_tasks_completion_percentage", "completion_percentage"},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(idx.table, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// DropSchema removes every table, children first.
func DropSchema(db *gorm.DB) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(Tables[i]); err != nil {
			return fmt.Errorf("failed to drop %s: %w", Tables[i], err)
		}
	}
	return nil
}
