// apps/go-server/internal/session/session.go
//
// Constructors, lookups, and invariant-preserving mutators for the Session
// aggregate. All state transitions flow through these helpers so that the
// session-level invariants hold at every observable point:
//   - at most one Question is Current,
//   - at most one Participant is TurnHolder while the game is active,
//   - AnsweredBy is set iff Answered,
//   - an Answered question never becomes Current or RobbingOpen again.
//
// Validation of WHO may perform a transition (turn ownership, game-master
// rights, lifecycle checks) lives in the game package; this package only
// guards the shape of the aggregate itself.

package session

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownQuestion    = errors.New("question not in session")
	ErrUnknownParticipant = errors.New("participant not in session")
	ErrDuplicateJoin      = errors.New("participant already joined")
	ErrQuestionResolved   = errors.New("question already answered")
)

// New creates a fresh lobby session. The creator joins immediately and is
// the game master for the session's whole lifetime.
func New(quizID, channelKey, masterID, masterName string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		ChannelKey: channelKey,
		QuizID:     quizID,
		UpdatedAt:  time.Now().UTC(),
		Participants: []Participant{
			{UserID: masterID, Name: masterName, GameMaster: true, Connected: true},
		},
	}
}

// ---------------------------- lookups --------------------------------------

// Participant returns a pointer into the aggregate's participant slice.
func (s *Session) Participant(userID string) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// Question returns a pointer into the aggregate's question slice.
func (s *Session) Question(questionID string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].QuestionID == questionID {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// CurrentQuestion returns the question with Current=true, if any.
func (s *Session) CurrentQuestion() *Question {
	for i := range s.Questions {
		if s.Questions[i].Current {
			return &s.Questions[i]
		}
	}
	return nil
}

// TurnHolder returns the participant holding the turn, if any.
func (s *Session) TurnHolder() *Participant {
	for i := range s.Participants {
		if s.Participants[i].TurnHolder {
			return &s.Participants[i]
		}
	}
	return nil
}

// GameMaster returns the participant with session-control rights.
func (s *Session) GameMaster() *Participant {
	for i := range s.Participants {
		if s.Participants[i].GameMaster {
			return &s.Participants[i]
		}
	}
	return nil
}

// AllAnswered reports whether every question in the session is resolved.
// False for a session that has no questions yet (lobby).
func (s *Session) AllAnswered() bool {
	if len(s.Questions) == 0 {
		return false
	}
	for i := range s.Questions {
		if !s.Questions[i].Answered {
			return false
		}
	}
	return true
}

// ---------------------------- mutators -------------------------------------

// AddParticipant joins a new player to a lobby session.
func (s *Session) AddParticipant(userID, name string) error {
	if _, ok := s.Participant(userID); ok {
		return ErrDuplicateJoin
	}
	s.Participants = append(s.Participants, Participant{
		UserID: userID, Name: name, Connected: true,
	})
	return nil
}

// RemoveParticipant drops a player from a lobby session.
func (s *Session) RemoveParticipant(userID string) error {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			return nil
		}
	}
	return ErrUnknownParticipant
}

// SetCurrent marks one unanswered question as the question in play,
// clearing Current from every other question.
func (s *Session) SetCurrent(questionID string) error {
	q, ok := s.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Answered {
		return ErrQuestionResolved
	}
	for i := range s.Questions {
		s.Questions[i].Current = false
	}
	q.Current = true
	return nil
}

// ResolveAnswered marks a question as correctly answered by userID and
// awards its points. The question leaves play permanently.
func (s *Session) ResolveAnswered(questionID, userID string) error {
	q, ok := s.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Answered {
		return ErrQuestionResolved
	}
	p, ok := s.Participant(userID)
	if !ok {
		return ErrUnknownParticipant
	}
	q.Answered = true
	q.AnsweredBy = userID
	q.Current = false
	q.RobbingOpen = false
	p.Points += q.Points
	return nil
}

// OpenRobbing opens the robbing window on the question in play after the
// turn holder's wrong answer.
func (s *Session) OpenRobbing(questionID string) error {
	q, ok := s.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Answered {
		return ErrQuestionResolved
	}
	q.RobbingOpen = true
	return nil
}

// Abandon returns an unresolved question to the pool: it is no longer
// Current or open for robbing, but stays unanswered and selectable so the
// session can still reach completion later.
func (s *Session) Abandon(questionID string) error {
	q, ok := s.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Answered {
		return ErrQuestionResolved
	}
	q.Current = false
	q.RobbingOpen = false
	return nil
}

// SetTurnHolder hands the turn to userID, clearing it from everyone else.
func (s *Session) SetTurnHolder(userID string) error {
	if _, ok := s.Participant(userID); !ok {
		return ErrUnknownParticipant
	}
	for i := range s.Participants {
		s.Participants[i].TurnHolder = s.Participants[i].UserID == userID
	}
	return nil
}

// AdvanceTurn rotates the turn to the next participant in join order,
// skipping disconnected players. If every participant is disconnected the
// rotation falls back to plain join order so the session never deadlocks.
// Returns the new turn holder.
func (s *Session) AdvanceTurn() *Participant {
	n := len(s.Participants)
	if n == 0 {
		return nil
	}
	start := 0
	for i := range s.Participants {
		if s.Participants[i].TurnHolder {
			start = i + 1
			break
		}
	}
	// First pass prefers connected players, second pass takes anyone.
	for pass := 0; pass < 2; pass++ {
		for off := 0; off < n; off++ {
			p := &s.Participants[(start+off)%n]
			if pass == 0 && !p.Connected {
				continue
			}
			_ = s.SetTurnHolder(p.UserID)
			return p
		}
	}
	return nil
}

// ClearTurn removes the turn from all participants (terminal states).
func (s *Session) ClearTurn() {
	for i := range s.Participants {
		s.Participants[i].TurnHolder = false
	}
}

// Ranked returns the participants ordered for final ranking: points
// descending, join order ascending on ties. The receiver is not mutated.
func (s *Session) Ranked() []Participant {
	out := make([]Participant, len(s.Participants))
	copy(out, s.Participants)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Points > out[j].Points
	})
	return out
}

// Touch records a committed mutation for the expiry sweep.
func (s *Session) Touch(now time.Time) { s.UpdatedAt = now.UTC() }
