package users

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound indicates no user has the requested id
	ErrNotFound = errors.New("user not found")

	// ErrInvalidUser indicates a user without an id
	ErrInvalidUser = errors.New("user id is required")
)

// UpdateFunc mutates a user in place. Returning an error aborts the update.
type UpdateFunc func(u *User) error

// Store persists users keyed by id
type Store interface {
	Get(ctx context.Context, id string) (*User, error)
	Put(ctx context.Context, u *User) error

	// Update applies fn under the user's lock and persists the result.
	// Concurrent updates of the same user are serialized.
	Update(ctx context.Context, id string, fn UpdateFunc) (*User, error)

	// Upsert is Update that starts from an empty user when id is unknown.
	// Creation happens under the same lock, so concurrent first writes all apply.
	Upsert(ctx context.Context, id string, fn UpdateFunc) (*User, error)

	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	List(ctx context.Context) ([]*User, error)
	CheckHealth(ctx context.Context) error
}

// keyedMutex hands out one mutex per user id
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
