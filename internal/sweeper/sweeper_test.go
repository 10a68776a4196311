package sweeper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
	"github.com/robalobadob/quizclash/apps/go-server/internal/store"
	"github.com/robalobadob/quizclash/apps/go-server/internal/sweeper"
)

// spyExpirer records which session ids the sweep hands to the engine.
type spyExpirer struct {
	mu     sync.Mutex
	ids    []string
	cutoff time.Time
	err    error
}

func (f *spyExpirer) ExpireStale(_ context.Context, id string, olderThan time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	f.cutoff = olderThan
	return f.err
}

func (f *spyExpirer) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

func TestSweep_ExpiresOnlyStale(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	stale := session.New("quiz-1", "AAAAAA", "alice", "Alice")
	stale.Touch(time.Now().Add(-time.Hour))
	require.NoError(t, st.Create(ctx, stale))

	fresh := session.New("quiz-1", "BBBBBB", "bob", "Bob")
	fresh.Touch(time.Now())
	require.NoError(t, st.Create(ctx, fresh))

	exp := &spyExpirer{}
	sw := sweeper.New(st, exp, time.Minute, 30*time.Minute)
	sw.Sweep(ctx)

	assert.Equal(t, []string{stale.ID}, exp.seen())

	// The expiry call carries the cutoff the listing used, so the engine can
	// re-check it against the aggregate it loads.
	assert.WithinDuration(t, time.Now().Add(-30*time.Minute), exp.cutoff, time.Minute)
}

func TestSweep_LostRaceIsSilent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	stale := session.New("quiz-1", "AAAAAA", "alice", "Alice")
	stale.Touch(time.Now().Add(-time.Hour))
	require.NoError(t, st.Create(ctx, stale))

	// A live commit beat the sweep; the pass carries on.
	exp := &spyExpirer{err: store.ErrConflict}
	sw := sweeper.New(st, exp, time.Minute, 30*time.Minute)
	sw.Sweep(ctx)

	assert.Equal(t, []string{stale.ID}, exp.seen())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	st := store.NewMemoryStore()
	sw := sweeper.New(st, &spyExpirer{}, time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
