// apps/go-server/internal/history/store.go
//
// Read side of the session archive: finished-session lookups, a player's
// game history, and the all-time points leaderboard. Rows are written by the
// session store's Archive step; this package only queries them.

package history

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("archived session not found")

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record is one archived session with its final ranking.
type Record struct {
	SessionID  string `json:"sessionId"`
	QuizID     string `json:"quizId"`
	Outcome    string `json:"outcome"`
	FinishedAt string `json:"finishedAt"`
	Ranks      []Rank `json:"ranks"`
}

type Rank struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Get loads one archived session and its ranking.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, quiz_id, outcome, finished_at
		 FROM session_archives WHERE session_id=?`, sessionID,
	).Scan(&r.SessionID, &r.QuizID, &r.Outcome, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, user_id, name, points
		 FROM session_archive_ranks WHERE session_id=? ORDER BY rank ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rk Rank
		if err := rows.Scan(&rk.Rank, &rk.UserID, &rk.Name, &rk.Points); err != nil {
			return nil, err
		}
		r.Ranks = append(r.Ranks, rk)
	}
	return &r, rows.Err()
}

// MineRow is one entry of a player's finished-game history.
type MineRow struct {
	SessionID  string `json:"sessionId"`
	QuizID     string `json:"quizId"`
	Outcome    string `json:"outcome"`
	FinishedAt string `json:"finishedAt"`
	Rank       int    `json:"rank"`
	Points     int    `json:"points"`
}

// Mine lists the most recent finished sessions of one user.
func (s *Store) Mine(ctx context.Context, userID string, limit int) ([]MineRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.session_id, a.quiz_id, a.outcome, a.finished_at, r.rank, r.points
		FROM session_archive_ranks r
		JOIN session_archives a ON a.session_id = r.session_id
		WHERE r.user_id=?
		ORDER BY a.finished_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []MineRow{}
	for rows.Next() {
		var r MineRow
		if err := rows.Scan(&r.SessionID, &r.QuizID, &r.Outcome, &r.FinishedAt, &r.Rank, &r.Points); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LBRow is one leaderboard entry.
type LBRow struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Wins   int    `json:"wins"`
	Points int    `json:"points"`
}

// Leaderboard ranks players across all completed sessions by total points,
// wins (rank 1 finishes) breaking ties.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.user_id, r.name,
		       SUM(CASE WHEN r.rank = 1 THEN 1 ELSE 0 END) AS wins,
		       SUM(r.points) AS points
		FROM session_archive_ranks r
		JOIN session_archives a ON a.session_id = r.session_id
		WHERE a.outcome = 'completed'
		GROUP BY r.user_id, r.name
		ORDER BY points DESC, wins DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Name, &r.Wins, &r.Points); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
