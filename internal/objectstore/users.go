package objectstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
)

// userRecord is the stored form of a user. models.User keeps its password
// hash out of JSON, so the record carries it explicitly.
type userRecord struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	FullName     string    `json:"full_name"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

func newUserRecord(u models.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	}
}

func (r userRecord) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		FullName:     r.FullName,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt,
	}
}

// UserStore implements repository.UserRepository.
type UserStore struct {
	b *Backend
}

func (s *UserStore) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var record userRecord
	found, err := load(ctx, s.b.rdb, s.b.recordKey(kindUsers, id), &record)
	if err != nil {
		return nil, repository.Unavailable("find user", err)
	}
	if !found {
		return nil, repository.ErrUserNotFound
	}
	user := record.toModel()
	return &user, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	raw, err := s.b.rdb.HGet(ctx, s.b.key(kindUsers, "by-username"), username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, repository.Unavailable("find user", err)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, repository.Unavailable("find user", err)
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	records, err := loadAll[userRecord](ctx, s.b, s.b.rdb, kindUsers)
	if err != nil {
		return nil, repository.Unavailable("list users", err)
	}

	users := make([]models.User, len(records))
	for i, r := range records {
		users[i] = r.toModel()
	}
	return users, nil
}

// OrganizationStore implements repository.OrganizationRepository.
type OrganizationStore struct {
	b *Backend
}

func (s *OrganizationStore) FindByID(ctx context.Context, id uint64) (*models.Organization, error) {
	var org models.Organization
	found, err := load(ctx, s.b.rdb, s.b.recordKey(kindOrganizations, id), &org)
	if err != nil {
		return nil, repository.Unavailable("find organization", err)
	}
	if !found {
		return nil, repository.ErrOrganizationNotFound
	}
	return &org, nil
}

func (s *OrganizationStore) List(ctx context.Context) ([]models.Organization, error) {
	orgs, err := loadAll[models.Organization](ctx, s.b, s.b.rdb, kindOrganizations)
	if err != nil {
		return nil, repository.Unavailable("list organizations", err)
	}

	sort.SliceStable(orgs, func(i, j int) bool {
		if orgs[i].Name != orgs[j].Name {
			return orgs[i].Name < orgs[j].Name
		}
		return orgs[i].ID < orgs[j].ID
	})
	return orgs, nil
}
