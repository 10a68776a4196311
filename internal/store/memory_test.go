package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
	"github.com/robalobadob/quizclash/apps/go-server/internal/store"
)

func newSession() *session.Session {
	s := session.New("quiz-1", "ABCDEF", "alice", "Alice")
	s.Touch(time.Now())
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	s := newSession()

	require.NoError(t, st.Create(ctx, s))
	assert.Equal(t, int64(1), s.Version)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	// Stored copies are isolated from the caller's aggregate.
	got.ChannelKey = "mutated"
	again, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", again.ChannelKey)

	_, err = st.Get(ctx, "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, st.Create(ctx, s), store.ErrExists)

	clash := newSession() // fresh id, same channel key
	assert.ErrorIs(t, st.Create(ctx, clash), store.ErrExists)
}

func TestGetByChannelKey(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	s := newSession()
	require.NoError(t, st.Create(ctx, s))

	got, err := st.GetByChannelKey(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = st.GetByChannelKey(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommit_VersionGuard(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	s := newSession()
	require.NoError(t, st.Create(ctx, s))

	a, err := st.LoadForMutation(ctx, s.ID)
	require.NoError(t, err)
	b, err := st.LoadForMutation(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, a.AddParticipant("bob", "Bob"))
	require.NoError(t, st.Commit(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	// b still carries version 1, so its commit loses the race.
	require.NoError(t, b.AddParticipant("carol", "Carol"))
	assert.ErrorIs(t, st.Commit(ctx, b), store.ErrConflict)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "bob", got.Participants[1].UserID)
}

func TestCommit_UnknownSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	assert.ErrorIs(t, st.Commit(ctx, newSession()), store.ErrNotFound)
}

func TestArchive_RetiresLiveAggregate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	s := newSession()
	require.NoError(t, st.Create(ctx, s))

	rec := &store.ArchiveRecord{
		SessionID:  s.ID,
		QuizID:     s.QuizID,
		Outcome:    "completed",
		FinishedAt: time.Now().UTC(),
		Ranks: []store.ArchiveRank{
			{Rank: 1, UserID: "alice", Name: "Alice", Points: 15},
		},
	}
	require.NoError(t, st.Archive(ctx, rec))

	_, err := st.Get(ctx, s.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	archived, err := st.Archived(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	archived, err = st.Archived(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, archived)

	assert.ErrorIs(t, st.Archive(ctx, rec), store.ErrNotFound, "double archive")
}

func TestStaleSessionIDs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	old := session.New("quiz-1", "AAAAAA", "alice", "Alice")
	old.Touch(time.Now().Add(-time.Hour))
	require.NoError(t, st.Create(ctx, old))

	fresh := session.New("quiz-1", "BBBBBB", "bob", "Bob")
	fresh.Touch(time.Now())
	require.NoError(t, st.Create(ctx, fresh))

	ids, err := st.StaleSessionIDs(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, ids)
}
