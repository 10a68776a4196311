// apps/go-server/internal/quiz/load.go
//
// Loads the seed quiz set for the catalog.
//
// Initialization behavior (Load):
//  1. If QUIZ_FILE is set, parse that JSON file (array of quizzes).
//  2. Otherwise fall back to the embedded default quiz set, so the server
//     runs with zero configuration.
//
// Environment variables:
//   QUIZ_FILE=/path/to/quizzes.json
//
// Constraints:
//   • Every quiz needs an id, a title, and at least one question.
//   • Every question needs an id, at least two options, a valid answer
//     index, and positive points.

package quiz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed default_quizzes.json
var embeddedQuizzes []byte

// Load parses the configured quiz file, or the embedded defaults when no
// file is configured, and validates every quiz in it.
func Load() ([]Quiz, error) {
	raw := embeddedQuizzes
	if path := os.Getenv("QUIZ_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read quiz file: %w", err)
		}
		raw = b
	}

	var quizzes []Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, fmt.Errorf("parse quizzes: %w", err)
	}
	for i := range quizzes {
		if err := validate(&quizzes[i]); err != nil {
			return nil, err
		}
	}
	if len(quizzes) == 0 {
		return nil, fmt.Errorf("quiz list is empty")
	}
	return quizzes, nil
}

func validate(q *Quiz) error {
	if q.ID == "" || q.Title == "" {
		return fmt.Errorf("quiz %q: id and title are required", q.ID)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz %q: no questions", q.ID)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, qu := range q.Questions {
		if qu.ID == "" {
			return fmt.Errorf("quiz %q: question without id", q.ID)
		}
		if _, dup := seen[qu.ID]; dup {
			return fmt.Errorf("quiz %q: duplicate question id %q", q.ID, qu.ID)
		}
		seen[qu.ID] = struct{}{}
		if len(qu.Options) < 2 {
			return fmt.Errorf("quiz %q question %q: needs at least two options", q.ID, qu.ID)
		}
		if qu.Answer < 0 || qu.Answer >= len(qu.Options) {
			return fmt.Errorf("quiz %q question %q: answer index out of range", q.ID, qu.ID)
		}
		if qu.Points <= 0 {
			return fmt.Errorf("quiz %q question %q: points must be positive", q.ID, qu.ID)
		}
	}
	return nil
}
