// apps/go-server/internal/ws/hub.go
//
// Connection registry + broadcaster for live sessions.
// Responsibilities:
//   - Map each WebSocket connection to exactly (user id, session id).
//   - Register on join, replace on reconnect, remove on drop.
//   - Publish committed session views to every connection of a session.
//
// Delivery is best-effort and at-least-once: each connection has a buffered
// send channel; a client that cannot drain its buffer is disconnected rather
// than allowed to stall the whole session.

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
)

// Flow is the slice of the game engine the socket layer drives. Implemented
// by *game.Engine.
type Flow interface {
	GameStarted(ctx context.Context, sessionID, actorID string) (*session.View, error)
	QuestionSelected(ctx context.Context, sessionID, actorID, questionID string) (*session.View, error)
	AnswerSubmitted(ctx context.Context, sessionID, actorID string, option int) (*session.View, error)
	QuestionRobbed(ctx context.Context, sessionID, actorID string, option int) (*session.View, error)
	PlayerJoined(ctx context.Context, sessionID, userID, userName string) (*session.View, error)
	PlayerLeft(ctx context.Context, sessionID, userID string) (*session.View, error)
	PlayerDisconnected(ctx context.Context, sessionID, userID string) (*session.View, error)
	GameCancelled(ctx context.Context, sessionID, actorID string) (*session.View, error)
}

// Envelope is the server→client notification frame.
type Envelope struct {
	Event     session.Event `json:"event"`
	SessionID string        `json:"sessionId"`
	Session   *session.View `json:"session,omitempty"`
	Code      string        `json:"code,omitempty"`    // error frames only
	Message   string        `json:"message,omitempty"` // error frames only
}

// Hub is the process-wide connection registry and broadcaster.
type Hub struct {
	flow     Flow
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[string]*client // sessionID -> userID -> client
}

// NewHub constructs a Hub driving the given engine. The flow is set after
// construction when engine and hub reference each other.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens before the upgrade; cross-origin browsers are
			// expected for the game clients.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[string]*client),
	}
}

// SetFlow wires the engine in. Must be called before ServeWS.
func (h *Hub) SetFlow(f Flow) { h.flow = f }

// ServeWS upgrades an authenticated request and attaches the connection to
// the session. The engine's PlayerJoined runs first, so an invalid session
// is rejected before the upgrade and the join is broadcast to the room.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID, userID, userName string) {
	if _, err := h.flow.PlayerJoined(r.Context(), sessionID, userID, userName); err != nil {
		writeJoinError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:       h,
		sessionID: sessionID,
		userID:    userID,
		conn:      conn,
		send:      make(chan []byte, 64),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().Str("sessionId", sessionID).Str("userId", userID).Msg("websocket connected")
}

// Publish implements game.Broadcaster: marshal once, then hand the frame to
// every connection registered for the session. The engine only calls this
// after the store accepted the commit.
func (h *Hub) Publish(sessionID string, event session.Event, view *session.View) {
	frame, err := json.Marshal(Envelope{Event: event, SessionID: sessionID, Session: view})
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns[sessionID] {
		if c.trySend(frame) {
			continue
		}
		// Slow consumer; drop the connection, the read pump's exit raises
		// PlayerDisconnected. An already-dropped client just skips the frame.
		if c.close() {
			log.Warn().Str("sessionId", sessionID).Str("userId", c.userID).Msg("send buffer full, dropping client")
		}
	}
}

// Connected reports how many connections a session currently has.
func (h *Hub) Connected(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}

// register records the connection, replacing (and closing) an earlier
// connection of the same user in the same session.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.sessionID] == nil {
		h.conns[c.sessionID] = make(map[string]*client)
	}
	if old, ok := h.conns[c.sessionID][c.userID]; ok {
		old.close()
	}
	h.conns[c.sessionID][c.userID] = c
}

// unregister removes the connection and reports whether it was still the
// registered one. A replaced connection returns false so a reconnect does
// not raise a spurious PlayerDisconnected.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.conns[c.sessionID][c.userID]
	if !ok || cur != c {
		return false
	}
	delete(h.conns[c.sessionID], c.userID)
	if len(h.conns[c.sessionID]) == 0 {
		delete(h.conns, c.sessionID)
	}
	return true
}

// onDrop is invoked by the read pump when a registered connection closes;
// it synthesizes the PlayerDisconnected event into the engine.
func (h *Hub) onDrop(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if _, err := h.flow.PlayerDisconnected(ctx, c.sessionID, c.userID); err != nil {
		log.Debug().Err(err).Str("sessionId", c.sessionID).Str("userId", c.userID).Msg("disconnect event")
	}
}
