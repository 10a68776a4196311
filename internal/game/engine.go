// apps/go-server/internal/game/engine.go
//
// Game flow engine for live quiz sessions.
// Responsibilities:
//   - One operation per accepted event kind (start, select, answer, rob,
//     join, leave, disconnect, cancel, expire).
//   - Validation ladder per operation: session exists → not terminal →
//     transition legal → actor holds the required turn/role.
//   - Mutations are computed on a private copy and committed as a unit
//     through the session store; a lost version race surfaces as ErrConflict
//     and is never retried here.
//   - Commit happens-before broadcast: views reach the broadcaster only
//     after the store accepted the mutation, in commit order.
//
// Answer correctness is resolved against the quiz catalog; the aggregate
// never stores answer keys.
package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/quizclash/apps/go-server/internal/quiz"
	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
	"github.com/robalobadob/quizclash/apps/go-server/internal/store"
)

// Broadcaster fans a committed state change out to every connection of a
// session. Delivery is best-effort; the engine never waits on it.
type Broadcaster interface {
	Publish(sessionID string, event session.Event, view *session.View)
}

// Engine validates actions against session state and turn ownership,
// commits the resulting mutation, and publishes the new view.
type Engine struct {
	store     store.Store
	catalog   quiz.Catalog
	broadcast Broadcaster
	now       func() time.Time
}

// New constructs an Engine. broadcast may be nil in tests.
func New(st store.Store, cat quiz.Catalog, b Broadcaster) *Engine {
	return &Engine{store: st, catalog: cat, broadcast: b, now: time.Now}
}

// ---------------------------- lobby ----------------------------------------

// CreateSession opens a fresh lobby for quizID. The creator joins as the
// game master and keeps that role for the session's lifetime.
func (e *Engine) CreateSession(ctx context.Context, quizID, userID, userName string) (*session.View, error) {
	if _, err := e.catalog.GetQuiz(ctx, quizID); err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			return nil, fmt.Errorf("%w: quiz %s", ErrNotFound, quizID)
		}
		return nil, err
	}
	s := session.New(quizID, newChannelKey(), userID, userName)
	s.Touch(e.now())
	if err := e.store.Create(ctx, s); err != nil {
		return nil, err
	}
	log.Info().Str("sessionId", s.ID).Str("quizId", quizID).Str("channelKey", s.ChannelKey).Msg("session created")
	return s.ToView(), nil
}

// PlayerJoined adds a participant to a lobby session, or reconnects a
// participant who already belongs to it (any lifecycle state).
func (e *Engine) PlayerJoined(ctx context.Context, sessionID, userID, userName string) (*session.View, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p, ok := s.Participant(userID); ok {
		// Rejoin after a drop; no lifecycle restriction.
		if s.Terminal() {
			return nil, ErrAlreadyTerminal
		}
		p.Connected = true
	} else {
		if s.Terminal() {
			return nil, ErrAlreadyTerminal
		}
		if s.Started {
			return nil, fmt.Errorf("%w: game already started", ErrIllegalTransition)
		}
		if err := s.AddParticipant(userID, userName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
		}
	}
	return e.commit(ctx, s, session.EventPlayerJoined)
}

// PlayerLeft removes a participant from a lobby session. Rejected once the
// game started; the game master cannot leave, only cancel.
func (e *Engine) PlayerLeft(ctx context.Context, sessionID, userID string) (*session.View, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if s.Started {
		return nil, fmt.Errorf("%w: game already started", ErrIllegalTransition)
	}
	p, ok := s.Participant(userID)
	if !ok {
		return nil, fmt.Errorf("%w: not a participant", ErrIllegalTransition)
	}
	if p.GameMaster {
		return nil, fmt.Errorf("%w: game master cannot leave, cancel the session instead", ErrIllegalTransition)
	}
	if err := s.RemoveParticipant(userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}
	return e.commit(ctx, s, session.EventPlayerLeft)
}

// ---------------------------- game flow ------------------------------------

// GameStarted begins play: one session question per quiz question, all
// unanswered, and the first turn assigned. Game-master only.
func (e *Engine) GameStarted(ctx context.Context, sessionID, actorID string) (*session.View, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if s.Started {
		return nil, fmt.Errorf("%w: game already started", ErrIllegalTransition)
	}
	if len(s.Participants) < 2 {
		return nil, fmt.Errorf("%w: need at least two participants", ErrIllegalTransition)
	}
	actor, ok := s.Participant(actorID)
	if !ok || !actor.GameMaster {
		return nil, fmt.Errorf("%w: only the game master starts the game", ErrTurnViolation)
	}

	qz, err := e.catalog.GetQuiz(ctx, s.QuizID)
	if err != nil {
		return nil, err
	}
	s.Questions = make([]session.Question, len(qz.Questions))
	for i, qu := range qz.Questions {
		s.Questions[i] = session.Question{QuestionID: qu.ID, Points: qu.Points}
	}
	s.Started = true
	holder := s.AdvanceTurn()
	if holder == nil {
		return nil, fmt.Errorf("%w: no participant can take the turn", ErrIllegalTransition)
	}
	return e.commit(ctx, s, session.EventGameStarted, session.EventNextPlayerSelected)
}

// QuestionSelected puts an unanswered question into play. Turn-holder only,
// and only while no other question is in play.
func (e *Engine) QuestionSelected(ctx context.Context, sessionID, actorID, questionID string) (*session.View, error) {
	s, err := e.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if holder := s.TurnHolder(); holder == nil || holder.UserID != actorID {
		return nil, fmt.Errorf("%w: only the turn holder selects questions", ErrTurnViolation)
	}
	if s.CurrentQuestion() != nil {
		return nil, fmt.Errorf("%w: a question is already in play", ErrIllegalTransition)
	}
	q, ok := s.Question(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	if q.Answered {
		return nil, fmt.Errorf("%w: question already answered", ErrIllegalTransition)
	}
	if err := s.SetCurrent(questionID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}
	return e.commit(ctx, s, session.EventQuestionSelected)
}

// AnswerSubmitted is the turn holder's primary answer to the question in
// play. A correct answer resolves the question and rotates the turn (or
// completes the session); a wrong answer opens the robbing window.
func (e *Engine) AnswerSubmitted(ctx context.Context, sessionID, actorID string, option int) (*session.View, error) {
	s, err := e.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q := s.CurrentQuestion()
	if q == nil {
		return nil, fmt.Errorf("%w: no question in play", ErrIllegalTransition)
	}
	if q.RobbingOpen {
		return nil, fmt.Errorf("%w: question is open for robbing", ErrIllegalTransition)
	}
	if holder := s.TurnHolder(); holder == nil || holder.UserID != actorID {
		return nil, fmt.Errorf("%w: only the turn holder answers first", ErrTurnViolation)
	}

	correct, err := e.checkAnswer(ctx, s.QuizID, q.QuestionID, option)
	if err != nil {
		return nil, err
	}
	if !correct {
		if err := s.OpenRobbing(q.QuestionID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
		}
		return e.commit(ctx, s, session.EventQuestionAnsweredWrong, session.EventQuestionRobbingIsAllowed)
	}
	if err := s.ResolveAnswered(q.QuestionID, actorID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}
	return e.afterResolved(ctx, s)
}

// QuestionRobbed is a non-turn-holder's attempt at a question left open by
// the turn holder's wrong answer. Concurrent attempts race on the commit;
// exactly one wins, the rest observe ErrConflict.
func (e *Engine) QuestionRobbed(ctx context.Context, sessionID, actorID string, option int) (*session.View, error) {
	s, err := e.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q := s.CurrentQuestion()
	if q == nil || !q.RobbingOpen {
		return nil, fmt.Errorf("%w: question is not open for robbing", ErrIllegalTransition)
	}
	if _, ok := s.Participant(actorID); !ok {
		return nil, fmt.Errorf("%w: not a participant", ErrIllegalTransition)
	}
	if holder := s.TurnHolder(); holder != nil && holder.UserID == actorID {
		return nil, fmt.Errorf("%w: the turn holder cannot rob their own question", ErrTurnViolation)
	}

	correct, err := e.checkAnswer(ctx, s.QuizID, q.QuestionID, option)
	if err != nil {
		return nil, err
	}
	if correct {
		if err := s.ResolveAnswered(q.QuestionID, actorID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
		}
		return e.afterResolved(ctx, s)
	}
	// Wrong rob: the question goes back to the pool unanswered and the
	// round moves on. It stays selectable so completion is still reachable.
	if err := s.Abandon(q.QuestionID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}
	s.AdvanceTurn()
	return e.commit(ctx, s, session.EventQuestionAnsweredWrong, session.EventNextPlayerSelected)
}

// PlayerDisconnected records a transport drop. It never mutates points; if
// the dropped player held the turn, any unresolved question returns to the
// pool and the turn rotates to the next connected participant. Terminal
// sessions absorb the event silently.
func (e *Engine) PlayerDisconnected(ctx context.Context, sessionID, userID string) (*session.View, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return s.ToView(), nil
	}
	p, ok := s.Participant(userID)
	if !ok {
		return s.ToView(), nil
	}
	p.Connected = false

	events := []session.Event{session.EventPlayerDisconnected}
	if s.Started && p.TurnHolder {
		if q := s.CurrentQuestion(); q != nil {
			_ = s.Abandon(q.QuestionID)
		}
		s.AdvanceTurn()
		events = append(events, session.EventNextPlayerSelected)
	}
	return e.commit(ctx, s, events...)
}

// GameCancelled terminates a non-completed session. Game-master only; no
// ranking is computed.
func (e *Engine) GameCancelled(ctx context.Context, sessionID, actorID string) (*session.View, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	actor, ok := s.Participant(actorID)
	if !ok || !actor.GameMaster {
		return nil, fmt.Errorf("%w: only the game master cancels the session", ErrTurnViolation)
	}
	return e.finalize(ctx, s, "cancelled", session.EventGameCancelled)
}

// ExpireStale finalizes a session with no committed mutation since
// olderThan. Driven by the sweeper; staleness is re-checked against the
// loaded aggregate, so a player action that commits between the sweeper's
// listing and this call keeps the session alive. A terminal session whose
// archive step never landed (crash between commit and archive) is retired
// here instead of lingering as a live row.
func (e *Engine) ExpireStale(ctx context.Context, sessionID string, olderThan time.Time) error {
	s, err := e.load(ctx, sessionID)
	if errors.Is(err, ErrAlreadyTerminal) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Terminal() {
		outcome, ranked := "cancelled", false
		if s.Completed {
			outcome, ranked = "completed", true
		}
		return e.archive(ctx, s, outcome, ranked)
	}
	if !s.UpdatedAt.Before(olderThan) {
		return nil
	}
	_, err = e.finalize(ctx, s, "expired", session.EventGameCancelled)
	return err
}

// ---------------------------- internals ------------------------------------

// load fetches a session for mutation. An id that was already retired into
// the archive reports ErrAlreadyTerminal rather than ErrNotFound, so
// post-completion events keep their terminal answer.
func (e *Engine) load(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := e.store.LoadForMutation(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		if archived, aerr := e.store.Archived(ctx, sessionID); aerr == nil && archived {
			return nil, ErrAlreadyTerminal
		}
	}
	return s, err
}

// loadActive loads a session that must be started and not terminal.
func (e *Engine) loadActive(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if !s.Started {
		return nil, fmt.Errorf("%w: game not started", ErrIllegalTransition)
	}
	return s, nil
}

// checkAnswer resolves correctness against the quiz catalog.
func (e *Engine) checkAnswer(ctx context.Context, quizID, questionID string, option int) (bool, error) {
	qu, err := e.catalog.GetQuestion(ctx, quizID, questionID)
	if err != nil {
		if errors.Is(err, quiz.ErrQuestionNotFound) {
			return false, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
		}
		return false, err
	}
	return qu.IsCorrect(option), nil
}

// afterResolved handles the shared tail of a correct answer or rob: either
// the session completes (last question) or the turn rotates.
func (e *Engine) afterResolved(ctx context.Context, s *session.Session) (*session.View, error) {
	if s.AllAnswered() {
		s.Completed = true
		s.Started = false
		s.ClearTurn()
		return e.finalizeCompleted(ctx, s)
	}
	s.AdvanceTurn()
	return e.commit(ctx, s, session.EventQuestionAnswered, session.EventNextPlayerSelected)
}

// finalizeCompleted commits the terminal state, archives the ranked result,
// and broadcasts in commit order.
func (e *Engine) finalizeCompleted(ctx context.Context, s *session.Session) (*session.View, error) {
	view, err := e.commit(ctx, s, session.EventQuestionAnswered, session.EventGameEnded)
	if err != nil {
		return nil, err
	}
	if err := e.archive(ctx, s, "completed", true); err != nil {
		return nil, err
	}
	return view, nil
}

// finalize cancels or expires a session: terminal state committed first,
// then the (unranked) archive, then the broadcast.
func (e *Engine) finalize(ctx context.Context, s *session.Session, outcome string, ev session.Event) (*session.View, error) {
	s.Cancelled = true
	s.Started = false
	s.ClearTurn()
	view, err := e.commit(ctx, s, ev)
	if err != nil {
		return nil, err
	}
	if err := e.archive(ctx, s, outcome, false); err != nil {
		return nil, err
	}
	return view, nil
}

// commit persists the mutated aggregate and, on success, publishes the new
// view once per emitted event.
func (e *Engine) commit(ctx context.Context, s *session.Session, events ...session.Event) (*session.View, error) {
	s.Touch(e.now())
	if err := e.store.Commit(ctx, s); err != nil {
		return nil, err
	}
	view := s.ToView()
	if e.broadcast != nil {
		for _, ev := range events {
			e.broadcast.Publish(s.ID, ev, view)
		}
	}
	return view, nil
}

// archive retires the live aggregate into its historical record.
func (e *Engine) archive(ctx context.Context, s *session.Session, outcome string, ranked bool) error {
	rec := &store.ArchiveRecord{
		SessionID:  s.ID,
		QuizID:     s.QuizID,
		Outcome:    outcome,
		FinishedAt: e.now().UTC(),
	}
	if ranked {
		for i, p := range s.Ranked() {
			rec.Ranks = append(rec.Ranks, store.ArchiveRank{
				Rank: i + 1, UserID: p.UserID, Name: p.Name, Points: p.Points,
			})
		}
	}
	if err := e.store.Archive(ctx, rec); err != nil {
		return fmt.Errorf("archive session %s: %w", s.ID, err)
	}
	log.Info().Str("sessionId", s.ID).Str("outcome", outcome).Msg("session archived")
	return nil
}

// newChannelKey returns a 6-character join code (unambiguous uppercase set).
func newChannelKey() string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var b [6]byte
	_, _ = rand.Read(b[:])
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b[:])
}
