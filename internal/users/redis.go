package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userPrefix = "user:"
	indexKey   = "users"

	maxTxRetries = 5
)

// RedisStore keeps each user as a JSON value plus a set of ids.
// Updates use WATCH so concurrent writers on other processes are detected.
type RedisStore struct {
	client *redis.Client
	keys   keyedMutex
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed user store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, id string) (*User, error) {
	data, err := c.Get(ctx, userPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("unmarshaling user: %w", err)
	}
	return &u, nil
}

func (s *RedisStore) stamp(u *User) ([]byte, error) {
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("marshaling user: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return ErrInvalidUser
	}
	unlock := s.keys.lock(u.ID)
	defer unlock()

	u = u.Clone()
	data, err := s.stamp(u)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userPrefix+u.ID, data, 0)
	pipe.SAdd(ctx, indexKey, u.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*User, error) {
	return s.apply(ctx, id, fn, false)
}

func (s *RedisStore) Upsert(ctx context.Context, id string, fn UpdateFunc) (*User, error) {
	return s.apply(ctx, id, fn, true)
}

// apply runs fn inside a WATCH on the user key. A missing key is only
// acceptable when create is set; the index entry is added in the same MULTI.
func (s *RedisStore) apply(ctx context.Context, id string, fn UpdateFunc, create bool) (*User, error) {
	if id == "" {
		return nil, ErrInvalidUser
	}
	unlock := s.keys.lock(id)
	defer unlock()

	key := userPrefix + id
	var updated *User

	txf := func(tx *redis.Tx) error {
		u, err := s.get(ctx, tx, id)
		if create && errors.Is(err, ErrNotFound) {
			u, err = &User{ID: id}, nil
		}
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		u.ID = id
		data, err := s.stamp(u)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, indexKey, id)
			return nil
		})
		if err == nil {
			updated = u
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("updating user %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	unlock := s.keys.lock(id)
	defer unlock()

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, userPrefix+id)
	pipe.SRem(ctx, indexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteAll(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, userPrefix+id)
	}
	keys = append(keys, indexKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting users: %w", err)
	}
	return nil
}

// List returns users ordered by id. Ids whose value vanished are skipped.
func (s *RedisStore) List(ctx context.Context) ([]*User, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	sort.Strings(ids)

	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		u, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
