// apps/go-server/internal/store/store.go
//
// Persistence contract for live session aggregates.
// Implementations may be backed by memory (tests) or SQLite (production).
//
// Concurrency model: LoadForMutation hands out a private deep copy together
// with the version it was loaded at; Commit applies the mutated copy only if
// no other commit landed in between, otherwise it fails with ErrConflict and
// the caller must reload. Operations on different sessions never block each
// other.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
)

var (
	// ErrNotFound means the session does not exist (or was archived).
	ErrNotFound = errors.New("session not found")
	// ErrConflict means another mutation committed first; reload and retry.
	ErrConflict = errors.New("session version conflict")
	// ErrExists means Create was called with an id or channel key already in use.
	ErrExists = errors.New("session already exists")
)

// ArchiveRank is one row of a final ranking.
type ArchiveRank struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// ArchiveRecord is the immutable historical record of a finished session.
type ArchiveRecord struct {
	SessionID  string        `json:"sessionId"`
	QuizID     string        `json:"quizId"`
	Outcome    string        `json:"outcome"` // "completed" | "cancelled" | "expired"
	FinishedAt time.Time     `json:"finishedAt"`
	Ranks      []ArchiveRank `json:"ranks"` // empty for cancelled sessions
}

// Store persists live session aggregates and retires finished ones.
type Store interface {
	// Create inserts a brand-new session at version 1.
	Create(ctx context.Context, s *session.Session) error

	// Get returns a read-only deep copy of a session.
	Get(ctx context.Context, id string) (*session.Session, error)

	// GetByChannelKey resolves a session by its external join code.
	GetByChannelKey(ctx context.Context, key string) (*session.Session, error)

	// LoadForMutation returns a deep copy carrying the loaded version,
	// suitable for mutate-then-Commit.
	LoadForMutation(ctx context.Context, id string) (*session.Session, error)

	// Commit atomically replaces the stored aggregate if s.Version still
	// matches; on success s.Version is advanced. ErrConflict otherwise.
	Commit(ctx context.Context, s *session.Session) error

	// Archive writes the historical record and removes the live aggregate
	// in one atomic step. Further mutations report ErrNotFound.
	Archive(ctx context.Context, rec *ArchiveRecord) error

	// Archived reports whether id was retired into historical storage.
	// Lets callers distinguish a finished session from one that never
	// existed.
	Archived(ctx context.Context, id string) (bool, error)

	// StaleSessionIDs lists live sessions whose last committed mutation is
	// older than the cutoff. Input for the expiry sweeper.
	StaleSessionIDs(ctx context.Context, olderThan time.Time) ([]string, error)
}
