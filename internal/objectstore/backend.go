// Package objectstore keeps the task monitor's records in redis: one JSON
// value per record, a sorted set of IDs per kind and a few secondary indexes.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	"github.com/yukikurage/mo-task-monitor/internal/config"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/seed"
)

const (
	schemaVersion = "1"
	scanBatch     = 500

	maxTxRetries      = 16
	txRetryInitial    = 2 * time.Millisecond
	txRetryMaxBackoff = 100 * time.Millisecond
	txRetryMaxElapsed = 3 * time.Second
)

const (
	kindUsers         = "users"
	kindOrganizations = "organizations"
	kindTasks         = "tasks"
)

// ErrContention is returned when an optimistic transaction keeps losing races.
var ErrContention = fmt.Errorf("objectstore: too many concurrent writers: %w", repository.ErrConflict)

// Backend is the redis implementation of repository.Backend.
type Backend struct {
	rdb    *redis.Client
	prefix string
	seed   seed.Bundle

	users *UserStore
	orgs  *OrganizationStore
	tasks *TaskStore
}

// New wraps a connected client. All keys are namespaced under prefix.
func New(rdb *redis.Client, prefix string, bundle seed.Bundle) *Backend {
	b := &Backend{rdb: rdb, prefix: prefix, seed: bundle}
	b.users = &UserStore{b: b}
	b.orgs = &OrganizationStore{b: b}
	b.tasks = &TaskStore{b: b}
	return b
}

// Open connects to the configured redis server.
func Open(ctx context.Context, cfg *config.Config, bundle seed.Bundle) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %w", repository.ErrInitialization, err)
	}
	return New(rdb, cfg.RedisKeyPrefix, bundle), nil
}

func (b *Backend) Name() string { return "objectstore" }

func (b *Backend) Users() repository.UserRepository                 { return b.users }
func (b *Backend) Organizations() repository.OrganizationRepository { return b.orgs }
func (b *Backend) Tasks() repository.TaskRepository                 { return b.tasks }

// Client exposes the underlying connection, e.g. for a redis session store.
func (b *Backend) Client() *redis.Client { return b.rdb }

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return repository.Unavailable("ping", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.rdb.Close()
}

// Initialize seeds users and organizations unless the schema version key exists.
func (b *Backend) Initialize(ctx context.Context) error {
	versionKey := b.key("meta", "version")
	err := b.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, versionKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}

		userSeq, err := readSeq(ctx, tx, b.seqKey(kindUsers))
		if err != nil {
			return err
		}
		orgSeq, err := readSeq(ctx, tx, b.seqKey(kindOrganizations))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, user := range b.seed.Users {
				userSeq++
				user.ID = userSeq
				raw, err := json.Marshal(newUserRecord(user))
				if err != nil {
					return err
				}
				pipe.Set(ctx, b.recordKey(kindUsers, user.ID), raw, 0)
				pipe.ZAdd(ctx, b.idsKey(kindUsers), &redis.Z{Score: float64(user.ID), Member: user.ID})
				pipe.HSet(ctx, b.key(kindUsers, "by-username"), user.Username, user.ID)
			}
			for _, org := range b.seed.Organizations {
				orgSeq++
				org.ID = orgSeq
				raw, err := json.Marshal(org)
				if err != nil {
					return err
				}
				pipe.Set(ctx, b.recordKey(kindOrganizations, org.ID), raw, 0)
				pipe.ZAdd(ctx, b.idsKey(kindOrganizations), &redis.Z{Score: float64(org.ID), Member: org.ID})
			}
			pipe.Set(ctx, b.seqKey(kindUsers), userSeq, 0)
			pipe.Set(ctx, b.seqKey(kindOrganizations), orgSeq, 0)
			pipe.Set(ctx, versionKey, schemaVersion, 0)
			return nil
		})
		return err
	}, versionKey, b.seqKey(kindUsers), b.seqKey(kindOrganizations))
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInitialization, err)
	}
	return nil
}

// Reset deletes every key under the prefix and seeds again.
func (b *Backend) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, b.prefix+":*", scanBatch).Result()
		if err != nil {
			return repository.Unavailable("reset", err)
		}
		if len(keys) > 0 {
			if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
				return repository.Unavailable("reset", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return b.Initialize(ctx)
}

// watch runs fn under WATCH, retrying with jittered exponential backoff when
// another client touched the keys.
func (b *Backend) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = txRetryInitial
	policy.MaxInterval = txRetryMaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := b.rdb.Watch(ctx, fn, keys...)
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxTxRetries),
		backoff.WithMaxElapsedTime(txRetryMaxElapsed),
	)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrContention
	}
	return err
}

func (b *Backend) key(parts ...string) string {
	return b.prefix + ":" + strings.Join(parts, ":")
}

func (b *Backend) recordKey(kind string, id uint64) string {
	return b.key(kind, strconv.FormatUint(id, 10))
}

func (b *Backend) idsKey(kind string) string {
	return b.key(kind, "ids")
}

func (b *Backend) seqKey(kind string) string {
	return b.key(kind, "seq")
}

func (b *Backend) orgIndexKey(orgID uint64) string {
	return b.key(kindTasks, "by-org", strconv.FormatUint(orgID, 10))
}

func readSeq(ctx context.Context, c redis.Cmdable, key string) (uint64, error) {
	v, err := c.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// load fetches and decodes one record. It reports false when the key is absent.
func load(ctx context.Context, c redis.Cmdable, key string, dst interface{}) (bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// loadAll decodes every record of a kind in ID order.
func loadAll[T any](ctx context.Context, b *Backend, c redis.Cmdable, kind string) ([]T, error) {
	ids, err := c.ZRange(ctx, b.idsKey(kind), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(kind, id)
	}
	return loadKeys[T](ctx, c, keys)
}

func loadKeys[T any](ctx context.Context, c redis.Cmdable, keys []string) ([]T, error) {
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, record)
	}
	return out, nil
}
