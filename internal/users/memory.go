package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps users in process memory
type MemoryStore struct {
	keys keyedMutex
	now  func() time.Time

	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   time.Now,
		users: make(map[string]*User),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return ErrInvalidUser
	}
	unlock := s.keys.lock(u.ID)
	defer unlock()
	s.put(u)
	return nil
}

func (s *MemoryStore) put(u *User) {
	now := s.now()
	c := u.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	s.mu.Lock()
	s.users[c.ID] = c
	s.mu.Unlock()
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*User, error) {
	return s.apply(ctx, id, fn, false)
}

func (s *MemoryStore) Upsert(ctx context.Context, id string, fn UpdateFunc) (*User, error) {
	return s.apply(ctx, id, fn, true)
}

func (s *MemoryStore) apply(ctx context.Context, id string, fn UpdateFunc, create bool) (*User, error) {
	if id == "" {
		return nil, ErrInvalidUser
	}
	unlock := s.keys.lock(id)
	defer unlock()

	u, err := s.Get(ctx, id)
	if create && errors.Is(err, ErrNotFound) {
		u, err = &User{ID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.ID = id
	s.put(u)
	return u.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	unlock := s.keys.lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*User)
	return nil
}

// List returns users ordered by id
func (s *MemoryStore) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
