// apps/go-server/internal/store/memory.go
//
// In-memory implementation of the Store interface.
// This is a lightweight persistence layer used for ephemeral sessions,
// primarily in development/testing, or when durability is not required.
//
// Characteristics:
//   - Stores *session.Session deep copies keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Optimistic commit: version mismatch returns ErrConflict.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session // keyed by Session.ID
	archived []*ArchiveRecord
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*session.Session)}
}

func (m *memory) Create(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrExists
	}
	for _, other := range m.sessions {
		if other.ChannelKey == s.ChannelKey {
			return ErrExists
		}
	}
	s.Version = 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *memory) GetByChannelKey(ctx context.Context, key string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ChannelKey == key {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// LoadForMutation is identical to Get here; the copy carries the version
// that Commit later checks against.
func (m *memory) LoadForMutation(ctx context.Context, id string) (*session.Session, error) {
	return m.Get(ctx, id)
}

func (m *memory) Commit(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != s.Version {
		return ErrConflict
	}
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memory) Archive(ctx context.Context, rec *ArchiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[rec.SessionID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, rec.SessionID)
	m.archived = append(m.archived, rec)
	return nil
}

func (m *memory) Archived(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.archived {
		if rec.SessionID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memory) StaleSessionIDs(ctx context.Context, olderThan time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(olderThan) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Archived exposes records retired through this store; test helper.
func Archived(s Store) []*ArchiveRecord {
	m, ok := s.(*memory)
	if !ok {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ArchiveRecord, len(m.archived))
	copy(out, m.archived)
	return out
}
