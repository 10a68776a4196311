// apps/go-server/internal/session/clone.go
//
// Explicit deep copy for the Session aggregate. The store hands mutators a
// private copy so an aborted mutation can never leak into shared state; the
// copy is written out field by field on purpose, no reflection.

package session

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Questions = make([]Question, len(s.Questions))
	copy(out.Questions, s.Questions)
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	return &out
}
