package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
)

// TaskStore implements repository.TaskRepository. Tasks are stored with
// their status entries embedded, so every task write is a single SET.
type TaskStore struct {
	b *Backend
}

func (s *TaskStore) List(ctx context.Context) ([]models.Task, error) {
	tasks, err := loadAll[models.Task](ctx, s.b, s.b.rdb, kindTasks)
	if err != nil {
		return nil, repository.Unavailable("list tasks", err)
	}
	return tasks, nil
}

func (s *TaskStore) ListByOrganization(ctx context.Context, orgID uint64) ([]models.Task, error) {
	ids, err := s.b.rdb.SMembers(ctx, s.b.orgIndexKey(orgID)).Result()
	if err != nil {
		return nil, repository.Unavailable("list tasks by organization", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.b.key(kindTasks, id)
	}
	tasks, err := loadKeys[models.Task](ctx, s.b.rdb, keys)
	if err != nil {
		return nil, repository.Unavailable("list tasks by organization", err)
	}
	sortTasks(tasks)
	return tasks, nil
}

func (s *TaskStore) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	found, err := load(ctx, s.b.rdb, s.b.recordKey(kindTasks, id), &task)
	if err != nil {
		return nil, repository.Unavailable("find task", err)
	}
	if !found {
		return nil, repository.ErrTaskNotFound
	}
	return &task, nil
}

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	id, err := s.b.rdb.Incr(ctx, s.b.seqKey(kindTasks)).Uint64()
	if err != nil {
		return repository.Unavailable("create task", err)
	}

	now := time.Now().UTC()
	task.ID = id
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	normalizeStatuses(task, now)

	_, err = s.b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.write(ctx, pipe, task, nil)
	})
	if err != nil {
		return repository.Unavailable("create task", err)
	}
	return nil
}

func (s *TaskStore) Update(ctx context.Context, task *models.Task, replaceStatuses bool) error {
	key := s.b.recordKey(kindTasks, task.ID)
	err := s.b.watch(ctx, func(tx *redis.Tx) error {
		var existing models.Task
		found, err := load(ctx, tx, key, &existing)
		if err != nil {
			return err
		}
		if !found {
			return repository.ErrTaskNotFound
		}

		now := time.Now().UTC()
		if !replaceStatuses {
			task.Statuses = existing.Statuses
		}
		task.UpdatedAt = now
		normalizeStatuses(task, now)
		task.Recompute()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.write(ctx, pipe, task, &existing)
		})
		return err
	}, key)
	return wrapError("update task", err)
}

func (s *TaskStore) Delete(ctx context.Context, id uint64) error {
	key := s.b.recordKey(kindTasks, id)
	err := s.b.watch(ctx, func(tx *redis.Tx) error {
		var existing models.Task
		found, err := load(ctx, tx, key, &existing)
		if err != nil {
			return err
		}
		if !found {
			return repository.ErrTaskNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.b.idsKey(kindTasks), id)
			for _, orgID := range referencedOrganizations(&existing) {
				pipe.SRem(ctx, s.b.orgIndexKey(orgID), id)
			}
			return nil
		})
		return err
	}, key)
	return wrapError("delete task", err)
}

func (s *TaskStore) UpsertOrganizationStatus(ctx context.Context, taskID uint64, status models.TaskOrganizationStatus) (*models.Task, error) {
	key := s.b.recordKey(kindTasks, taskID)
	var task models.Task
	err := s.b.watch(ctx, func(tx *redis.Tx) error {
		task = models.Task{}
		found, err := load(ctx, tx, key, &task)
		if err != nil {
			return err
		}
		if !found {
			return repository.ErrTaskNotFound
		}

		previous := task
		previous.Statuses = append([]models.TaskOrganizationStatus(nil), task.Statuses...)

		status.ID = 0
		status.TaskID = taskID
		replaced := false
		for i := range task.Statuses {
			if task.Statuses[i].OrganizationID == status.OrganizationID {
				task.Statuses[i] = status
				replaced = true
				break
			}
		}
		if !replaced {
			task.Statuses = append(task.Statuses, status)
			sortStatuses(task.Statuses)
		}
		task.Recompute()
		task.UpdatedAt = status.LastUpdated

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.write(ctx, pipe, &task, &previous)
		})
		return err
	}, key)
	if err != nil {
		return nil, wrapError("update organization status", err)
	}
	return &task, nil
}

func (s *TaskStore) ReplaceAll(ctx context.Context, tasks []models.Task) error {
	idsKey := s.b.idsKey(kindTasks)
	seqKey := s.b.seqKey(kindTasks)
	err := s.b.watch(ctx, func(tx *redis.Tx) error {
		existing, err := loadAll[models.Task](ctx, s.b, tx, kindTasks)
		if err != nil {
			return err
		}
		seq, err := readSeq(ctx, tx, seqKey)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := range existing {
				pipe.Del(ctx, s.b.recordKey(kindTasks, existing[i].ID))
				for _, orgID := range referencedOrganizations(&existing[i]) {
					pipe.Del(ctx, s.b.orgIndexKey(orgID))
				}
			}
			pipe.Del(ctx, idsKey)

			for i := range tasks {
				task := tasks[i]
				task.Statuses = append([]models.TaskOrganizationStatus(nil), task.Statuses...)
				for j := range task.Statuses {
					task.Statuses[j].ID = 0
					task.Statuses[j].TaskID = task.ID
				}
				if err := s.write(ctx, pipe, &task, nil); err != nil {
					return err
				}
				if task.ID > seq {
					seq = task.ID
				}
			}
			pipe.Set(ctx, seqKey, seq, 0)
			return nil
		})
		return err
	}, idsKey, seqKey)
	return wrapError("replace tasks", err)
}

// write queues the record, its ID and its organization index entries.
// previous, when set, is the stored version whose index entries may be stale.
func (s *TaskStore) write(ctx context.Context, pipe redis.Pipeliner, task *models.Task, previous *models.Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}

	pipe.Set(ctx, s.b.recordKey(kindTasks, task.ID), raw, 0)
	pipe.ZAdd(ctx, s.b.idsKey(kindTasks), &redis.Z{Score: float64(task.ID), Member: task.ID})

	current := referencedOrganizations(task)
	if previous != nil {
		keep := make(map[uint64]bool, len(current))
		for _, id := range current {
			keep[id] = true
		}
		for _, id := range referencedOrganizations(previous) {
			if !keep[id] {
				pipe.SRem(ctx, s.b.orgIndexKey(id), task.ID)
			}
		}
	}
	for _, id := range current {
		pipe.SAdd(ctx, s.b.orgIndexKey(id), task.ID)
	}
	return nil
}

func referencedOrganizations(task *models.Task) []uint64 {
	ids := []uint64{task.OrganizationID}
	for _, st := range task.Statuses {
		if st.OrganizationID != task.OrganizationID {
			ids = append(ids, st.OrganizationID)
		}
	}
	return ids
}

func normalizeStatuses(task *models.Task, now time.Time) {
	for i := range task.Statuses {
		task.Statuses[i].ID = 0
		task.Statuses[i].TaskID = task.ID
		if task.Statuses[i].LastUpdated.IsZero() {
			task.Statuses[i].LastUpdated = now
		}
	}
	sortStatuses(task.Statuses)
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrTaskNotFound) {
		return repository.ErrTaskNotFound
	}
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return repository.Unavailable(op, err)
}
