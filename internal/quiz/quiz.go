// apps/go-server/internal/quiz/quiz.go
//
// Quiz catalog types and the read contract the game engine consumes.
// A quiz is authored elsewhere; the server only needs to resolve questions
// and check submitted answers, so the catalog surface is deliberately small.

package quiz

import (
	"context"
	"errors"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
)

// Quiz is one playable question set.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Question is one catalog question. Answer is the index into Options of the
// correct choice; it is never serialized to clients.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
	Points  int      `json:"points"`
}

// IsCorrect checks a submitted option index against the answer key.
func (q *Question) IsCorrect(option int) bool {
	return option >= 0 && option < len(q.Options) && option == q.Answer
}

// Catalog resolves quizzes and questions for the game flow engine.
// Implementations: the SQLite store in this package; tests use a small
// in-memory fake.
type Catalog interface {
	// GetQuiz loads one quiz with its questions, in authored order.
	// Returns ErrQuizNotFound for unknown ids.
	GetQuiz(ctx context.Context, quizID string) (*Quiz, error)

	// GetQuestion loads a single question of a quiz.
	// Returns ErrQuestionNotFound if the quiz exists but the question does not.
	GetQuestion(ctx context.Context, quizID, questionID string) (*Question, error)
}
