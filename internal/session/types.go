// apps/go-server/internal/session/types.go
//
// Core type definitions for a live quiz session.
// Defines:
//   - Session: aggregate root for one in-progress game (the sole unit of
//     atomic mutation).
//   - Question: per-session state of one quiz question.
//   - Participant: per-session state of one joined player.
//   - Event: the kinds of state-change notifications a session emits.

package session

import "time"

// Event identifies a state-change notification emitted by the game flow
// engine and fanned out to every connection of a session.
type Event string

const (
	EventGameStarted              Event = "GameStarted"
	EventQuestionSelected         Event = "QuestionSelected"
	EventQuestionAnswered         Event = "QuestionAnswered"
	EventQuestionAnsweredWrong    Event = "QuestionAnsweredWrong"
	EventQuestionRobbingIsAllowed Event = "QuestionRobbingIsAllowed"
	EventQuestionRobbed           Event = "QuestionRobbed"
	EventNextPlayerSelected       Event = "NextPlayerSelected"
	EventPlayerJoined             Event = "PlayerJoined"
	EventPlayerLeft               Event = "PlayerLeft"
	EventPlayerDisconnected       Event = "PlayerDisconnected"
	EventGameCancelled            Event = "GameCancelled"
	EventGameEnded                Event = "GameEnded"
)

// Session holds the full state of one live quiz game.
//
// Cross-aggregate references (quiz, users) are ids only; the session owns
// its questions and participants and nothing else.
type Session struct {
	ID         string    // UUID, assigned at creation
	ChannelKey string    // short external join code
	QuizID     string    // quiz being played (catalog id)
	Started    bool      // true once GameStarted was accepted
	Completed  bool      // true once every question is answered
	Cancelled  bool      // true if cancelled by the game master or expired
	Version    int64     // optimistic-concurrency guard, bumped per commit
	UpdatedAt  time.Time // last committed mutation (sweeper input)

	Questions    []Question    // one per quiz question, in quiz order
	Participants []Participant // in join order
}

// Question is the per-session state of one quiz question.
// Invariants (enforced by the mutators in this package):
//   - AnsweredBy is non-empty iff Answered is true.
//   - Once Answered, the question never becomes Current or RobbingOpen again.
type Question struct {
	QuestionID  string // catalog question id
	Points      int    // points awarded to whoever answers it
	Answered    bool
	Current     bool
	RobbingOpen bool
	AnsweredBy  string // user id of the answering participant
}

// Participant is the per-session state of one joined player.
type Participant struct {
	UserID     string
	Name       string
	TurnHolder bool
	GameMaster bool // fixed at session creation, exactly one per session
	Connected  bool
	Points     int
}

// Terminal reports whether the session reached a final state.
func (s *Session) Terminal() bool { return s.Completed || s.Cancelled }

// State reports a coarse string representation of the session lifecycle.
func (s *Session) State() string {
	switch {
	case s.Cancelled:
		return "cancelled"
	case s.Completed:
		return "completed"
	case s.Started:
		return "playing"
	default:
		return "lobby"
	}
}
