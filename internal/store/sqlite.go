// apps/go-server/internal/store/sqlite.go
//
// SQLite implementation of the Store interface.
// One live session spans three tables (sessions, session_questions,
// session_participants); every mutation of an aggregate happens inside a
// single transaction, guarded by a version column:
//
//   UPDATE sessions SET ..., version = version + 1
//   WHERE id = ? AND version = ?
//
// Zero rows affected means another commit won the race (ErrConflict) or the
// session was archived meanwhile (ErrNotFound). Archiving inserts the
// historical record and deletes the live rows in the same transaction, so a
// session is never observable half-retired.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
)

type sqliteStore struct{ db *sql.DB }

// NewSQLiteStore constructs the durable session store.
func NewSQLiteStore(db *sql.DB) Store { return &sqliteStore{db: db} }

func (s *sqliteStore) Create(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var clash int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE id=? OR channel_key=?`,
		sess.ID, sess.ChannelKey,
	).Scan(&clash)
	if err == nil {
		return ErrExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	sess.Version = 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions(id, channel_key, quiz_id, started, completed, cancelled, version, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		sess.ID, sess.ChannelKey, sess.QuizID,
		sess.Started, sess.Completed, sess.Cancelled,
		sess.Version, sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err := insertChildren(ctx, tx, sess); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.load(ctx, `WHERE id=?`, id)
}

func (s *sqliteStore) GetByChannelKey(ctx context.Context, key string) (*session.Session, error) {
	return s.load(ctx, `WHERE channel_key=?`, key)
}

func (s *sqliteStore) LoadForMutation(ctx context.Context, id string) (*session.Session, error) {
	return s.load(ctx, `WHERE id=?`, id)
}

func (s *sqliteStore) load(ctx context.Context, where string, arg any) (*session.Session, error) {
	var sess session.Session
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_key, quiz_id, started, completed, cancelled, version, updated_at
		 FROM sessions `+where, arg,
	).Scan(&sess.ID, &sess.ChannelKey, &sess.QuizID,
		&sess.Started, &sess.Completed, &sess.Cancelled,
		&sess.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("session %s updated_at: %w", sess.ID, err)
	}

	qrows, err := s.db.QueryContext(ctx,
		`SELECT question_id, points, answered, current, robbing_open, COALESCE(answered_by,'')
		 FROM session_questions WHERE session_id=? ORDER BY position ASC`, sess.ID)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()
	for qrows.Next() {
		var q session.Question
		if err := qrows.Scan(&q.QuestionID, &q.Points, &q.Answered, &q.Current, &q.RobbingOpen, &q.AnsweredBy); err != nil {
			return nil, err
		}
		sess.Questions = append(sess.Questions, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, turn_holder, game_master, connected, points
		 FROM session_participants WHERE session_id=? ORDER BY position ASC`, sess.ID)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var p session.Participant
		if err := prows.Scan(&p.UserID, &p.Name, &p.TurnHolder, &p.GameMaster, &p.Connected, &p.Points); err != nil {
			return nil, err
		}
		sess.Participants = append(sess.Participants, p)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *sqliteStore) Commit(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET started=?, completed=?, cancelled=?, updated_at=?, version=version+1
		 WHERE id=? AND version=?`,
		sess.Started, sess.Completed, sess.Cancelled,
		sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
		sess.ID, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Disambiguate a lost race from a retired session.
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=?`, sess.ID).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return ErrConflict
	}

	// Children are small per session; replace wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_questions WHERE session_id=?`, sess.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_participants WHERE session_id=?`, sess.ID); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, sess); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	sess.Version++
	return nil
}

func (s *sqliteStore) Archive(ctx context.Context, rec *ArchiveRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, rec.SessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_questions WHERE session_id=?`, rec.SessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_participants WHERE session_id=?`, rec.SessionID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_archives(session_id, quiz_id, outcome, finished_at)
		 VALUES(?,?,?,?)`,
		rec.SessionID, rec.QuizID, rec.Outcome,
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}
	for _, r := range rec.Ranks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_archive_ranks(session_id, rank, user_id, name, points)
			 VALUES(?,?,?,?,?)`,
			rec.SessionID, r.Rank, r.UserID, r.Name, r.Points,
		); err != nil {
			return fmt.Errorf("insert archive rank: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Archived(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM session_archives WHERE session_id=?`, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) StaleSessionIDs(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE updated_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// insertChildren writes the question and participant rows of one aggregate.
func insertChildren(ctx context.Context, tx *sql.Tx, sess *session.Session) error {
	for pos, q := range sess.Questions {
		var answeredBy any
		if q.AnsweredBy != "" {
			answeredBy = q.AnsweredBy
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_questions(session_id, position, question_id, points, answered, current, robbing_open, answered_by)
			 VALUES(?,?,?,?,?,?,?,?)`,
			sess.ID, pos, q.QuestionID, q.Points, q.Answered, q.Current, q.RobbingOpen, answeredBy,
		); err != nil {
			return fmt.Errorf("insert session question: %w", err)
		}
	}
	for pos, p := range sess.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_participants(session_id, position, user_id, name, turn_holder, game_master, connected, points)
			 VALUES(?,?,?,?,?,?,?,?)`,
			sess.ID, pos, p.UserID, p.Name, p.TurnHolder, p.GameMaster, p.Connected, p.Points,
		); err != nil {
			return fmt.Errorf("insert session participant: %w", err)
		}
	}
	return nil
}
