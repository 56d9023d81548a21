// Package session maps opaque session identifiers to authenticated usernames.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vovakirdan/roomchat/internal/utils"
)

// ErrNotFound is returned for unknown, expired or invalidated sessions.
var ErrNotFound = errors.New("session not found")

// Store is the session backend.
type Store interface {
	// Create opens a session for username and returns its id.
	Create(ctx context.Context, username string) (string, error)

	// Lookup resolves a session id to its username.
	Lookup(ctx context.Context, id string) (string, error)

	// Invalidate ends a session. Invalidating an unknown session is not an error.
	Invalidate(ctx context.Context, id string) error
}

type entry struct {
	username string
	expires  time.Time
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]entry
}

// NewMemoryStore builds an in-memory store. ttl <= 0 means sessions never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]entry),
	}
}

// Create opens a session for username.
func (m *MemoryStore) Create(_ context.Context, username string) (string, error) {
	id := utils.NewID()

	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	m.sessions[id] = entry{username: username, expires: expires}
	m.sweepLocked()
	return id, nil
}

// Lookup resolves a session id.
func (m *MemoryStore) Lookup(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return "", ErrNotFound
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.sessions, id)
		return "", ErrNotFound
	}
	return e.username, nil
}

// Invalidate removes a session.
func (m *MemoryStore) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// sweepLocked drops expired sessions. Caller holds mu.
func (m *MemoryStore) sweepLocked() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for id, e := range m.sessions {
		if !now.Before(e.expires) {
			delete(m.sessions, id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
