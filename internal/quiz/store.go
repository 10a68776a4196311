// apps/go-server/internal/quiz/store.go
//
// SQLite-backed quiz catalog. Options are stored as a JSON array column;
// the answer index and points live alongside. Seeding is idempotent so the
// embedded default set can be re-applied on every boot.

package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Store is the catalog persistence layer. It implements Catalog.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Seed upserts the given quizzes and their questions in one transaction.
func (s *Store) Seed(ctx context.Context, quizzes []Quiz) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range quizzes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quizzes(id, title) VALUES(?,?)
			 ON CONFLICT(id) DO UPDATE SET title=excluded.title`,
			q.ID, q.Title,
		); err != nil {
			return fmt.Errorf("seed quiz %s: %w", q.ID, err)
		}
		for pos, qu := range q.Questions {
			opts, err := json.Marshal(qu.Options)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO questions(id, quiz_id, position, text, options, answer, points)
				 VALUES(?,?,?,?,?,?,?)
				 ON CONFLICT(id) DO UPDATE SET
				   quiz_id=excluded.quiz_id, position=excluded.position,
				   text=excluded.text, options=excluded.options,
				   answer=excluded.answer, points=excluded.points`,
				qu.ID, q.ID, pos, qu.Text, string(opts), qu.Answer, qu.Points,
			); err != nil {
				return fmt.Errorf("seed question %s: %w", qu.ID, err)
			}
		}
	}
	return tx.Commit()
}

// GetQuiz loads one quiz with its questions in authored order.
func (s *Store) GetQuiz(ctx context.Context, quizID string) (*Quiz, error) {
	q := Quiz{ID: quizID}
	err := s.db.QueryRowContext(ctx,
		`SELECT title FROM quizzes WHERE id=?`, quizID,
	).Scan(&q.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, options, answer, points
		 FROM questions WHERE quiz_id=? ORDER BY position ASC`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qu Question
		var opts string
		if err := rows.Scan(&qu.ID, &qu.Text, &opts, &qu.Answer, &qu.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &qu.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", qu.ID, err)
		}
		q.Questions = append(q.Questions, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestion loads a single question of a quiz.
func (s *Store) GetQuestion(ctx context.Context, quizID, questionID string) (*Question, error) {
	var qu Question
	var opts string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, options, answer, points
		 FROM questions WHERE quiz_id=? AND id=?`, quizID, questionID,
	).Scan(&qu.ID, &qu.Text, &opts, &qu.Answer, &qu.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opts), &qu.Options); err != nil {
		return nil, fmt.Errorf("question %s options: %w", qu.ID, err)
	}
	return &qu, nil
}

// QuizSummary is the list row returned to the lobby UI.
type QuizSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
}

// ListQuizzes returns all quizzes with their question counts.
func (s *Store) ListQuizzes(ctx context.Context) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.title, COUNT(qs.id)
		FROM quizzes q LEFT JOIN questions qs ON qs.quiz_id = q.id
		GROUP BY q.id, q.title ORDER BY q.title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizSummary{}
	for rows.Next() {
		var r QuizSummary
		if err := rows.Scan(&r.ID, &r.Title, &r.Questions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
