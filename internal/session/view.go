// apps/go-server/internal/session/view.go
//
// Client-safe projection of the Session aggregate. Views carry ids, flags,
// points, the question in play, and the turn holder; they never expose
// answer keys or store-internal fields (Version, UpdatedAt).

package session

// View is the outbound representation of a session, embedded in every
// broadcast envelope and returned by the HTTP session endpoints.
type View struct {
	ID                string            `json:"sessionId"`
	ChannelKey        string            `json:"channelKey"`
	QuizID            string            `json:"quizId"`
	State             string            `json:"state"` // "lobby" | "playing" | "completed" | "cancelled"
	CurrentQuestionID string            `json:"currentQuestionId,omitempty"`
	RobbingOpen       bool              `json:"robbingOpen"`
	TurnHolderID      string            `json:"turnHolderId,omitempty"`
	Questions         []QuestionView    `json:"questions"`
	Participants      []ParticipantView `json:"participants"`
}

type QuestionView struct {
	QuestionID  string `json:"questionId"`
	Points      int    `json:"points"`
	Answered    bool   `json:"answered"`
	Current     bool   `json:"current"`
	RobbingOpen bool   `json:"robbingOpen"`
	AnsweredBy  string `json:"answeredBy,omitempty"`
}

type ParticipantView struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	TurnHolder bool   `json:"turnHolder"`
	GameMaster bool   `json:"gameMaster"`
	Connected  bool   `json:"connected"`
	Points     int    `json:"points"`
}

// ToView projects the aggregate into its client-safe shape.
func (s *Session) ToView() *View {
	v := &View{
		ID:           s.ID,
		ChannelKey:   s.ChannelKey,
		QuizID:       s.QuizID,
		State:        s.State(),
		Questions:    make([]QuestionView, len(s.Questions)),
		Participants: make([]ParticipantView, len(s.Participants)),
	}
	for i, q := range s.Questions {
		v.Questions[i] = QuestionView{
			QuestionID:  q.QuestionID,
			Points:      q.Points,
			Answered:    q.Answered,
			Current:     q.Current,
			RobbingOpen: q.RobbingOpen,
			AnsweredBy:  q.AnsweredBy,
		}
		if q.Current {
			v.CurrentQuestionID = q.QuestionID
			v.RobbingOpen = q.RobbingOpen
		}
	}
	for i, p := range s.Participants {
		v.Participants[i] = ParticipantView{
			UserID:     p.UserID,
			Name:       p.Name,
			TurnHolder: p.TurnHolder,
			GameMaster: p.GameMaster,
			Connected:  p.Connected,
			Points:     p.Points,
		}
		if p.TurnHolder {
			v.TurnHolderID = p.UserID
		}
	}
	return v
}
