package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/quizclash/apps/go-server/internal/game"
	"github.com/robalobadob/quizclash/apps/go-server/internal/session"
	"github.com/robalobadob/quizclash/apps/go-server/internal/ws"
)

// fakeFlow records engine calls and answers with canned results.
type fakeFlow struct {
	mu      sync.Mutex
	calls   []string
	joinErr error
	actErr  error
}

func (f *fakeFlow) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeFlow) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeFlow) view(sessionID string) *session.View {
	return &session.View{ID: sessionID, State: "playing"}
}

func (f *fakeFlow) GameStarted(_ context.Context, sessionID, actorID string) (*session.View, error) {
	f.record("start:" + actorID)
	return f.view(sessionID), f.actErr
}

func (f *fakeFlow) QuestionSelected(_ context.Context, sessionID, actorID, questionID string) (*session.View, error) {
	f.record("select:" + actorID + ":" + questionID)
	return f.view(sessionID), f.actErr
}

func (f *fakeFlow) AnswerSubmitted(_ context.Context, sessionID, actorID string, option int) (*session.View, error) {
	f.record("answer:" + actorID)
	return f.view(sessionID), f.actErr
}

func (f *fakeFlow) QuestionRobbed(_ context.Context, sessionID, actorID string, option int) (*session.View, error) {
	f.record("rob:" + actorID)
	return f.view(sessionID), f.actErr
}

func (f *fakeFlow) PlayerJoined(_ context.Context, sessionID, userID, userName string) (*session.View, error) {
	f.record("join:" + userID)
	return f.view(sessionID), f.joinErr
}

func (f *fakeFlow) PlayerLeft(_ context.Context, sessionID, userID string) (*session.View, error) {
	f.record("leave:" + userID)
	return f.view(sessionID), f.actErr
}

func (f *fakeFlow) PlayerDisconnected(_ context.Context, sessionID, userID string) (*session.View, error) {
	f.record("disconnect:" + userID)
	return f.view(sessionID), nil
}

func (f *fakeFlow) GameCancelled(_ context.Context, sessionID, actorID string) (*session.View, error) {
	f.record("cancel:" + actorID)
	return f.view(sessionID), f.actErr
}

// newWSServer serves one session where the connecting user id comes from the
// request query, standing in for the auth middleware.
func newWSServer(t *testing.T, flow ws.Flow) (*ws.Hub, *httptest.Server) {
	t.Helper()
	hub := ws.NewHub()
	hub.SetFlow(flow)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user")
		hub.ServeWS(w, r, "session-1", user, user)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) ws.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env ws.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestServeWS_JoinAndBroadcast(t *testing.T) {
	flow := &fakeFlow{}
	hub, srv := newWSServer(t, flow)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	assert.Equal(t, 2, hub.Connected("session-1"))
	assert.Contains(t, flow.seen(), "join:alice")
	assert.Contains(t, flow.seen(), "join:bob")

	view := &session.View{ID: "session-1", State: "playing"}
	hub.Publish("session-1", session.EventGameStarted, view)

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEnvelope(t, conn)
		assert.Equal(t, session.EventGameStarted, env.Event)
		assert.Equal(t, "session-1", env.SessionID)
		require.NotNil(t, env.Session)
		assert.Equal(t, "playing", env.Session.State)
	}
}

func TestServeWS_JoinRejectedBeforeUpgrade(t *testing.T) {
	flow := &fakeFlow{joinErr: game.ErrAlreadyTerminal}
	_, srv := newWSServer(t, flow)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "already_finished", body["error"])
}

// Error detail with JSON metacharacters must still produce a parseable body.
func TestServeWS_JoinErrorBodyIsValidJSON(t *testing.T) {
	flow := &fakeFlow{joinErr: fmt.Errorf("%w: player \"alice\" not allowed", game.ErrIllegalTransition)}
	_, srv := newWSServer(t, flow)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "illegal_transition", body["error"])
	assert.Contains(t, body["message"], `"alice"`)
}

func TestDispatch_RoutesActions(t *testing.T) {
	flow := &fakeFlow{}
	_, srv := newWSServer(t, flow)
	conn := dial(t, srv, "alice")

	frames := []string{
		`{"action":"start"}`,
		`{"action":"select_question","questionId":"q1"}`,
		`{"action":"answer","option":2}`,
		`{"action":"rob","option":0}`,
		`{"action":"cancel"}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	require.Eventually(t, func() bool {
		return len(flow.seen()) >= 1+len(frames)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{
		"join:alice",
		"start:alice",
		"select:alice:q1",
		"answer:alice",
		"rob:alice",
		"cancel:alice",
	}, flow.seen())
}

func TestDispatch_EngineErrorGoesToSenderOnly(t *testing.T) {
	flow := &fakeFlow{actErr: game.ErrTurnViolation}
	_, srv := newWSServer(t, flow)
	conn := dial(t, srv, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"start"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, session.Event("Error"), env.Event)
	assert.Equal(t, "turn_violation", env.Code)
}

func TestDispatch_UnknownAction(t *testing.T) {
	flow := &fakeFlow{}
	_, srv := newWSServer(t, flow)
	conn := dial(t, srv, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"dance"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, "unknown_action", env.Code)
}

func TestLeave_NoDisconnectEvent(t *testing.T) {
	flow := &fakeFlow{}
	hub, srv := newWSServer(t, flow)
	conn := dial(t, srv, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"leave"}`)))

	require.Eventually(t, func() bool {
		return hub.Connected("session-1") == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Give the read pump a beat to exit; a leave must not double-report as a
	// transport drop.
	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, flow.seen(), "disconnect:alice")
	assert.Contains(t, flow.seen(), "leave:alice")
}

func TestDrop_RaisesPlayerDisconnected(t *testing.T) {
	flow := &fakeFlow{}
	hub, srv := newWSServer(t, flow)
	conn := dial(t, srv, "alice")
	require.Equal(t, 1, hub.Connected("session-1"))

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		for _, c := range flow.seen() {
			if c == "disconnect:alice" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Connected("session-1"))
}

func TestReconnect_ReplacesRegistration(t *testing.T) {
	flow := &fakeFlow{}
	hub, srv := newWSServer(t, flow)

	dial(t, srv, "alice")
	second := dial(t, srv, "alice")

	require.Eventually(t, func() bool {
		return hub.Connected("session-1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The replaced connection's exit must not surface as a disconnect.
	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, flow.seen(), "disconnect:alice")

	// The surviving connection still receives broadcasts.
	hub.Publish("session-1", session.EventPlayerJoined, &session.View{ID: "session-1"})
	env := readEnvelope(t, second)
	assert.Equal(t, session.EventPlayerJoined, env.Event)
}
