// apps/go-server/internal/httpserver/routes_session.go
//
// Session, quiz, and history endpoints (all require auth):
//   - GET  /quizzes                 — playable quizzes.
//   - POST /sessions                — open a lobby (creator = game master).
//   - GET  /sessions/{sessionID}    — authoritative session view (the
//                                     refetch target after a conflict).
//   - GET  /sessions/key/{key}      — resolve a join code to a view.
//   - GET  /sessions/{sessionID}/ws — attach the WebSocket; all in-game
//                                     actions travel over it.
//   - GET  /history/leaderboard     — all-time points leaderboard.
//   - GET  /history/mine            — the caller's finished sessions.
//   - GET  /history/{sessionID}     — one archived session with ranking.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountSessionRoutes() {
	s.r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())

		r.Get("/quizzes", s.handleListQuizzes)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/key/{channelKey}", s.handleSessionByKey)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Get("/sessions/{sessionID}/ws", s.handleSessionWS)

		r.Get("/history/leaderboard", s.handleLeaderboard)
		r.Get("/history/mine", s.handleMyHistory)
		r.Get("/history/{sessionID}", s.handleArchivedSession)
	})
}

// ------------------------------ quizzes ------------------------------------

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	out, err := s.quizzes.ListQuizzes(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// ------------------------------ sessions -----------------------------------

type createSessionReq struct {
	QuizID string `json:"quizId"`
}

// handleCreateSession opens a fresh lobby for the chosen quiz.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	var req createSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	view, err := s.engine.CreateSession(r.Context(), req.QuizID, me.ID, me.Username)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// handleGetSession returns the authoritative view of a live session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess.ToView())
}

// handleSessionByKey resolves an external join code.
func (s *Server) handleSessionByKey(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetByChannelKey(r.Context(), chi.URLParam(r, "channelKey"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess.ToView())
}

// handleSessionWS joins the caller to the session and upgrades to a
// WebSocket. The hub runs PlayerJoined before the upgrade, so join errors
// surface as regular HTTP statuses.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	s.hub.ServeWS(w, r, chi.URLParam(r, "sessionID"), me.ID, me.Username)
}

// ------------------------------ history ------------------------------------

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.history.Leaderboard(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleMyHistory(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.history.Mine(r.Context(), me.ID, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleArchivedSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rec)
}
