// apps/go-server/internal/sweeper/sweeper.go
//
// Periodic finalization of stale sessions. A session that saw no committed
// mutation within Timeout is cancelled through the regular engine path, so
// an expiry can never race a live player action: whichever commit lands
// first wins and the loser is dropped.

package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/quizclash/apps/go-server/internal/store"
)

// Expirer is the engine operation the sweeper drives. The cutoff travels
// with the call so the engine can re-check staleness against the aggregate
// it actually loads.
type Expirer interface {
	ExpireStale(ctx context.Context, sessionID string, olderThan time.Time) error
}

// Sweeper finalizes inactive sessions on a fixed interval.
type Sweeper struct {
	store    store.Store
	expirer  Expirer
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// New constructs a Sweeper. interval controls how often the pass runs,
// timeout how long a session may sit without a committed mutation.
func New(st store.Store, e Expirer, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{store: st, expirer: e, interval: interval, timeout: timeout, now: time.Now}
}

// Run blocks until ctx is cancelled, sweeping every interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.interval).Dur("timeout", s.timeout).Msg("session sweeper running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exported so tests (and admin tooling) can trigger it
// without the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.timeout)
	ids, err := s.store.StaleSessionIDs(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("list stale sessions")
		return
	}
	for _, id := range ids {
		err := s.expirer.ExpireStale(ctx, id, cutoff)
		switch {
		case err == nil:
			log.Info().Str("sessionId", id).Msg("expired stale session")
		case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound):
			// A live action (or another sweep) got there first.
		default:
			log.Error().Err(err).Str("sessionId", id).Msg("expire stale session")
		}
	}
}
