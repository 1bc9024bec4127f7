// Package session holds per-device playback state
package session

import (
	"context"
	"slices"
	"sync"
)

// State is the playback state of one (user, device) pair
type State struct {
	NowPlayingItemID string
	Queue            []string
	PositionMs       int64
}

// Playing reports whether an item is current
func (s *State) Playing() bool {
	return s.NowPlayingItemID != ""
}

// CurrentIndex returns the queue index of the current item, or -1
func (s *State) CurrentIndex() int {
	if !s.Playing() {
		return -1
	}
	return slices.Index(s.Queue, s.NowPlayingItemID)
}

// Next returns the item after the current one
func (s *State) Next() (string, bool) {
	i := s.CurrentIndex()
	if i < 0 || i+1 >= len(s.Queue) {
		return "", false
	}
	return s.Queue[i+1], true
}

// Previous returns the item before the current one
func (s *State) Previous() (string, bool) {
	i := s.CurrentIndex()
	if i <= 0 {
		return "", false
	}
	return s.Queue[i-1], true
}

// ReplaceQueue installs items as the queue and makes the first one current
func (s *State) ReplaceQueue(items []string) {
	s.Queue = slices.Clone(items)
	s.PositionMs = 0
	if len(s.Queue) > 0 {
		s.NowPlayingItemID = s.Queue[0]
	} else {
		s.NowPlayingItemID = ""
	}
}

// SetCurrent makes id the current item from its start
func (s *State) SetCurrent(id string) {
	s.NowPlayingItemID = id
	s.PositionMs = 0
}

// Key identifies a session
type Key struct {
	UserID   string
	DeviceID string
}

// Store hands out session state under a per-session lock
type Store interface {
	// With runs fn holding the session's lock. Changes fn makes to the
	// state are kept.
	With(ctx context.Context, key Key, fn func(*State) error) error
}

type entry struct {
	mu    sync.Mutex
	state State
}

// Memory keeps sessions in process memory
type Memory struct {
	mu       sync.Mutex
	sessions map[Key]*entry
}

// NewMemory creates an empty session store
func NewMemory() *Memory {
	return &Memory{sessions: make(map[Key]*entry)}
}

func (m *Memory) With(ctx context.Context, key Key, fn func(*State) error) error {
	m.mu.Lock()
	e, ok := m.sessions[key]
	if !ok {
		e = &entry{}
		m.sessions[key] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.state)
}

// Snapshot returns a copy of the state for key
func (m *Memory) Snapshot(key Key) State {
	m.mu.Lock()
	e, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return State{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Queue = slices.Clone(s.Queue)
	return s
}

// EndUser forgets every session of a user
func (m *Memory) EndUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.sessions {
		if k.UserID == userID {
			delete(m.sessions, k)
		}
	}
}
