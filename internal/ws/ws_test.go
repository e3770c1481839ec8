package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

// newHubServer accepts websockets into hub and keeps reading until the
// client goes away.
func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s := NewSession(conn)
		hub.Add(s)
		defer hub.Remove(s)
		for {
			if _, err := s.Read(context.Background()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	return env
}

func TestHub_BroadcastReachesEverySession(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)
	a := dial(t, srv)
	b := dial(t, srv)

	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast("hello", map[string]int{"n": 1})

	for _, c := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, c)
		assert.Equal(t, "hello", env.Type)
		assert.JSONEq(t, `{"n":1}`, string(env.Payload))
	}
}

func TestHub_RemoveOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)
	c := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSession_AllowIsRateLimited(t *testing.T) {
	s := NewSession(nil)

	allowed := 0
	for i := 0; i < EventBurst*2; i++ {
		if s.Allow() {
			allowed++
		}
	}
	assert.GreaterOrEqual(t, allowed, EventBurst)
	assert.Less(t, allowed, EventBurst*2)
}

func TestSession_DoneAfterClose(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)
	conn := dial(t, srv)
	s := NewSession(conn)

	_ = s.Close(websocket.StatusNormalClosure, "bye")
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session not done after close")
	}
}
