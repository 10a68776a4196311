// apps/go-server/internal/ws/client.go
//
// Per-connection read/write pumps and inbound action dispatch.
//
// Heartbeat: the write pump pings every pingPeriod; the read pump extends
// its deadline on every pong. A dead connection is therefore detected within
// pongWait and its exit raises PlayerDisconnected into the engine.
//
// Inbound actions mutate state exclusively through the engine; successful
// results reach the whole session via the engine's broadcast, while errors
// go back to the sender only.

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/quizclash/apps/go-server/internal/game"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 1024
	dispatchTimeout = 5 * time.Second
)

// Action is a client→server frame.
type Action struct {
	Action     string `json:"action"` // start | select_question | answer | rob | cancel | leave
	QuestionID string `json:"questionId,omitempty"`
	Option     int    `json:"option"`
}

type client struct {
	hub       *Hub
	sessionID string
	userID    string
	conn      *websocket.Conn
	send      chan []byte

	mu     sync.Mutex
	closed bool
}

// close marks the client dead and shuts the send channel exactly once; the
// write pump then closes the underlying connection. Reports whether this
// call performed the close.
func (c *client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// trySend queues a frame without blocking. False means the buffer is full or
// the client is already closed; the closed check and the send share one lock
// with close, so a frame can never hit a closed channel.
func (c *client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) readPump() {
	defer func() {
		wasRegistered := c.hub.unregister(c)
		c.close()
		_ = c.conn.Close()
		if wasRegistered {
			c.hub.onDrop(c)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("userId", c.userID).Msg("websocket read")
			}
			return
		}
		var act Action
		if err := json.Unmarshal(raw, &act); err != nil {
			c.sendError("bad_json", "malformed action frame")
			continue
		}
		if leave := c.dispatch(&act); leave {
			return
		}
	}
}

// dispatch routes one action to the engine. Returns true when the
// connection should close (explicit leave).
func (c *client) dispatch(act *Action) bool {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	var err error
	switch act.Action {
	case "start":
		_, err = c.hub.flow.GameStarted(ctx, c.sessionID, c.userID)
	case "select_question":
		_, err = c.hub.flow.QuestionSelected(ctx, c.sessionID, c.userID, act.QuestionID)
	case "answer":
		_, err = c.hub.flow.AnswerSubmitted(ctx, c.sessionID, c.userID, act.Option)
	case "rob":
		_, err = c.hub.flow.QuestionRobbed(ctx, c.sessionID, c.userID, act.Option)
	case "cancel":
		_, err = c.hub.flow.GameCancelled(ctx, c.sessionID, c.userID)
	case "leave":
		if _, err = c.hub.flow.PlayerLeft(ctx, c.sessionID, c.userID); err == nil {
			// Leaving deregisters before the read pump exits so the leave
			// is not followed by a disconnect event.
			c.hub.unregister(c)
			c.close()
			return true
		}
	default:
		c.sendError("unknown_action", "unknown action "+act.Action)
		return false
	}

	if err != nil {
		code, msg := errCode(err)
		c.sendError(code, msg)
	}
	return false
}

// sendError delivers an error frame to this client only.
func (c *client) sendError(code, msg string) {
	frame, err := json.Marshal(Envelope{
		Event:     "Error",
		SessionID: c.sessionID,
		Code:      code,
		Message:   msg,
	})
	if err != nil {
		return
	}
	_ = c.trySend(frame)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ---------------------------- error mapping --------------------------------

// errCode maps engine errors to stable client-facing codes. Persistence
// failures are reported without internals.
func errCode(err error) (code, msg string) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return "not_found", err.Error()
	case errors.Is(err, game.ErrAlreadyTerminal):
		return "already_finished", err.Error()
	case errors.Is(err, game.ErrIllegalTransition):
		return "illegal_transition", err.Error()
	case errors.Is(err, game.ErrTurnViolation):
		return "turn_violation", err.Error()
	case errors.Is(err, game.ErrConflict):
		return "conflict", "another action won the race; refetch state"
	default:
		return "internal", "internal error"
	}
}

// writeJoinError rejects a join before the websocket upgrade.
func writeJoinError(w http.ResponseWriter, err error) {
	code, msg := errCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "already_finished", "conflict":
		status = http.StatusConflict
	case "illegal_transition":
		status = http.StatusUnprocessableEntity
	case "turn_violation":
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
