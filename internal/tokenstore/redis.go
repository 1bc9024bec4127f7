package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis keys with native expiry
type Redis[T any] struct {
	client *redis.Client
	prefix string
	opts   options
}

// NewRedis creates a Redis-backed store. Keys are namespaced by prefix.
func NewRedis[T any](client *redis.Client, prefix string, opts ...Option) *Redis[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis[T]{client: client, prefix: prefix, opts: o}
}

func (s *Redis[T]) key(token string) string {
	return s.prefix + token
}

// Issue stores payload under a fresh token using SETNX semantics
func (s *Redis[T]) Issue(ctx context.Context, payload T) (string, error) {
	for i := 0; i < maxIssueAttempts; i++ {
		token, err := s.opts.generate()
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(Record[T]{
			Token:     token,
			ExpiresAt: s.opts.now().Add(s.opts.ttl),
			Payload:   payload,
		})
		if err != nil {
			return "", fmt.Errorf("marshaling token record: %w", err)
		}

		ok, err := s.client.SetNX(ctx, s.key(token), data, s.opts.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("storing token: %w", err)
		}
		if ok {
			return token, nil
		}
	}
	return "", ErrCollision
}

func (s *Redis[T]) load(ctx context.Context, token string) (Record[T], bool, error) {
	var rec Record[T]
	if token == "" {
		return rec, false, nil
	}

	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("loading token: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("unmarshaling token record: %w", err)
	}

	if !rec.Valid(s.opts.now()) {
		if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
			return rec, false, fmt.Errorf("removing expired token: %w", err)
		}
		return Record[T]{}, false, nil
	}
	return rec, true, nil
}

// Validate reports whether token is live
func (s *Redis[T]) Validate(ctx context.Context, token string) (bool, error) {
	_, ok, err := s.load(ctx, token)
	return ok, err
}

// Get returns the payload for a live token
func (s *Redis[T]) Get(ctx context.Context, token string) (T, bool, error) {
	rec, ok, err := s.load(ctx, token)
	return rec.Payload, ok, err
}

// Consume takes the record with GETDEL so only one caller can win it
func (s *Redis[T]) Consume(ctx context.Context, token string) (T, bool, error) {
	var rec Record[T]
	if token == "" {
		return rec.Payload, false, nil
	}

	data, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec.Payload, false, nil
	}
	if err != nil {
		return rec.Payload, false, fmt.Errorf("consuming token: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec.Payload, false, fmt.Errorf("unmarshaling token record: %w", err)
	}
	if !rec.Valid(s.opts.now()) {
		var zero T
		return zero, false, nil
	}
	return rec.Payload, true, nil
}

// Remove deletes token
func (s *Redis[T]) Remove(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// SweepExpired scans the namespace for records past their expiry.
// Redis TTLs normally remove them first, so this usually returns zero.
func (s *Redis[T]) SweepExpired(ctx context.Context) (int, error) {
	var (
		cursor uint64
		n      int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return n, fmt.Errorf("scanning tokens: %w", err)
		}
		for _, k := range keys {
			_, ok, err := s.load(ctx, strings.TrimPrefix(k, s.prefix))
			if err != nil {
				return n, err
			}
			if !ok {
				n++
			}
		}
		cursor = next
		if cursor == 0 {
			return n, nil
		}
	}
}

// CheckHealth verifies Redis connectivity
func (s *Redis[T]) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
