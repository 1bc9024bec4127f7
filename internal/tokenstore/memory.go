package tokenstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store guarded by a single mutex
type Memory[T any] struct {
	opts options

	mu      sync.Mutex
	records map[string]Record[T]
}

// NewMemory creates an empty in-memory store
func NewMemory[T any](opts ...Option) *Memory[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[T]{
		opts:    o,
		records: make(map[string]Record[T]),
	}
}

// Issue stores payload under a fresh token. Expired entries are swept first.
func (m *Memory[T]) Issue(ctx context.Context, payload T) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	for i := 0; i < maxIssueAttempts; i++ {
		token, err := m.opts.generate()
		if err != nil {
			return "", err
		}
		if _, taken := m.records[token]; taken {
			continue
		}
		m.records[token] = Record[T]{
			Token:     token,
			ExpiresAt: m.opts.now().Add(m.opts.ttl),
			Payload:   payload,
		}
		return token, nil
	}
	return "", ErrCollision
}

// Validate reports whether token is live, dropping it if expired
func (m *Memory[T]) Validate(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.liveLocked(token)
	return ok, nil
}

// Get returns the payload for a live token
func (m *Memory[T]) Get(ctx context.Context, token string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.liveLocked(token)
	return rec.Payload, ok, nil
}

// Consume returns the payload of a live token and deletes it
func (m *Memory[T]) Consume(ctx context.Context, token string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.liveLocked(token)
	if ok {
		delete(m.records, token)
	}
	return rec.Payload, ok, nil
}

// Remove deletes token
func (m *Memory[T]) Remove(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, token)
	return nil
}

// SweepExpired drops all expired records
func (m *Memory[T]) SweepExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sweepLocked(), nil
}

// CheckHealth always succeeds for the in-memory store
func (m *Memory[T]) CheckHealth(ctx context.Context) error {
	return nil
}

// Len returns the number of stored records, expired or not
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Memory[T]) liveLocked(token string) (Record[T], bool) {
	rec, ok := m.records[token]
	if !ok {
		return rec, false
	}
	if !rec.Valid(m.opts.now()) {
		delete(m.records, token)
		return Record[T]{}, false
	}
	return rec, true
}

func (m *Memory[T]) sweepLocked() int {
	now := m.opts.now()
	n := 0
	for token, rec := range m.records {
		if !rec.Valid(now) {
			delete(m.records, token)
			n++
		}
	}
	return n
}
