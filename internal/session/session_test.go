package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
)

func newPlaying(t *testing.T) *session.Session {
	t.Helper()
	s := session.New("quiz-1", "ABCDEF", "alice", "Alice")
	require.NoError(t, s.AddParticipant("bob", "Bob"))
	require.NoError(t, s.AddParticipant("carol", "Carol"))
	s.Questions = []session.Question{
		{QuestionID: "q1", Points: 5},
		{QuestionID: "q2", Points: 10},
		{QuestionID: "q3", Points: 15},
	}
	s.Started = true
	require.NoError(t, s.SetTurnHolder("alice"))
	return s
}

func TestNew(t *testing.T) {
	s := session.New("quiz-1", "ABCDEF", "alice", "Alice")
	require.Len(t, s.Participants, 1)
	assert.True(t, s.Participants[0].GameMaster)
	assert.True(t, s.Participants[0].Connected)
	assert.Equal(t, "lobby", s.State())
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.AllAnswered(), "a session without questions is never complete")
}

func TestAddParticipant_Duplicate(t *testing.T) {
	s := session.New("quiz-1", "ABCDEF", "alice", "Alice")
	require.NoError(t, s.AddParticipant("bob", "Bob"))
	assert.ErrorIs(t, s.AddParticipant("bob", "Bob"), session.ErrDuplicateJoin)
}

func TestSetCurrent_SingleCurrent(t *testing.T) {
	s := newPlaying(t)
	require.NoError(t, s.SetCurrent("q1"))
	require.NoError(t, s.SetCurrent("q2"))

	count := 0
	for _, q := range s.Questions {
		if q.Current {
			count++
		}
	}
	assert.Equal(t, 1, count, "at most one question may be current")
	assert.Equal(t, "q2", s.CurrentQuestion().QuestionID)
}

func TestSetCurrent_AnsweredQuestionStaysOut(t *testing.T) {
	s := newPlaying(t)
	require.NoError(t, s.SetCurrent("q1"))
	require.NoError(t, s.ResolveAnswered("q1", "alice"))

	assert.ErrorIs(t, s.SetCurrent("q1"), session.ErrQuestionResolved)
	assert.ErrorIs(t, s.OpenRobbing("q1"), session.ErrQuestionResolved)
}

func TestResolveAnswered(t *testing.T) {
	s := newPlaying(t)
	require.NoError(t, s.SetCurrent("q2"))
	require.NoError(t, s.OpenRobbing("q2"))
	require.NoError(t, s.ResolveAnswered("q2", "bob"))

	q, ok := s.Question("q2")
	require.True(t, ok)
	assert.True(t, q.Answered)
	assert.Equal(t, "bob", q.AnsweredBy)
	assert.False(t, q.Current)
	assert.False(t, q.RobbingOpen)

	bob, _ := s.Participant("bob")
	assert.Equal(t, 10, bob.Points)

	assert.ErrorIs(t, s.ResolveAnswered("q2", "carol"), session.ErrQuestionResolved)
}

func TestAbandon_KeepsQuestionSelectable(t *testing.T) {
	s := newPlaying(t)
	require.NoError(t, s.SetCurrent("q3"))
	require.NoError(t, s.OpenRobbing("q3"))
	require.NoError(t, s.Abandon("q3"))

	q, _ := s.Question("q3")
	assert.False(t, q.Answered)
	assert.False(t, q.Current)
	assert.False(t, q.RobbingOpen)
	assert.NoError(t, s.SetCurrent("q3"), "abandoned question returns to the pool")
}

func TestSetTurnHolder_SingleHolder(t *testing.T) {
	s := newPlaying(t)
	require.NoError(t, s.SetTurnHolder("bob"))
	require.NoError(t, s.SetTurnHolder("carol"))

	count := 0
	for _, p := range s.Participants {
		if p.TurnHolder {
			count++
		}
	}
	assert.Equal(t, 1, count, "at most one participant may hold the turn")
	assert.Equal(t, "carol", s.TurnHolder().UserID)
}

func TestAdvanceTurn_JoinOrderRotation(t *testing.T) {
	s := newPlaying(t)
	assert.Equal(t, "bob", s.AdvanceTurn().UserID)
	assert.Equal(t, "carol", s.AdvanceTurn().UserID)
	assert.Equal(t, "alice", s.AdvanceTurn().UserID)
}

func TestAdvanceTurn_SkipsDisconnected(t *testing.T) {
	s := newPlaying(t)
	bob, _ := s.Participant("bob")
	bob.Connected = false

	assert.Equal(t, "carol", s.AdvanceTurn().UserID)
}

func TestAdvanceTurn_AllDisconnectedFallsBack(t *testing.T) {
	s := newPlaying(t)
	for i := range s.Participants {
		s.Participants[i].Connected = false
	}
	assert.Equal(t, "bob", s.AdvanceTurn().UserID, "rotation must not deadlock")
}

func TestRanked_TieBreakByJoinOrder(t *testing.T) {
	s := newPlaying(t)
	alice, _ := s.Participant("alice")
	bob, _ := s.Participant("bob")
	carol, _ := s.Participant("carol")
	alice.Points = 10
	bob.Points = 15
	carol.Points = 10

	ranked := s.Ranked()
	require.Len(t, ranked, 3)
	assert.Equal(t, "bob", ranked[0].UserID)
	assert.Equal(t, "alice", ranked[1].UserID, "equal points rank by join order")
	assert.Equal(t, "carol", ranked[2].UserID)
}

func TestClone_Independent(t *testing.T) {
	s := newPlaying(t)
	c := s.Clone()
	require.NoError(t, c.SetCurrent("q1"))
	require.NoError(t, c.ResolveAnswered("q1", "alice"))

	assert.Nil(t, s.CurrentQuestion(), "mutating the clone must not touch the original")
	orig, _ := s.Participant("alice")
	assert.Equal(t, 0, orig.Points)
}

func TestToView(t *testing.T) {
	s := newPlaying(t)
	require.NoError(t, s.SetCurrent("q2"))
	require.NoError(t, s.OpenRobbing("q2"))

	v := s.ToView()
	assert.Equal(t, s.ID, v.ID)
	assert.Equal(t, "playing", v.State)
	assert.Equal(t, "q2", v.CurrentQuestionID)
	assert.True(t, v.RobbingOpen)
	assert.Equal(t, "alice", v.TurnHolderID)
	assert.Len(t, v.Questions, 3)
	assert.Len(t, v.Participants, 3)
}
