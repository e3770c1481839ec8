package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

const writeTimeout = 3 * time.Second

// Limits applied to client-triggered housekeeping events on one session.
const (
	EventsPerSecond = 10
	EventBurst      = 20
)

// Session is one websocket connection speaking protocol envelopes. Writes
// are serialized; reads must come from a single goroutine.
type Session struct {
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:      uuid.NewString(),
		conn:    conn,
		limiter: rate.NewLimiter(EventsPerSecond, EventBurst),
		done:    make(chan struct{}),
	}
}

// Send writes one envelope, giving up after the write timeout.
func (s *Session) Send(ctx context.Context, eventType string, payload any) error {
	data, err := protocol.Encode(eventType, payload)
	if err != nil {
		return err
	}
	return s.Write(ctx, data)
}

// Write sends an already encoded frame.
func (s *Session) Write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Read blocks for the next envelope. Frames that are not valid envelopes
// are returned as protocol errors; transport failures end the session.
func (s *Session) Read(ctx context.Context) (protocol.Envelope, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		s.markDone()
		return protocol.Envelope{}, err
	}
	return protocol.Decode(data)
}

// Allow reports whether another rate-limited event may be handled now.
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

// Close ends the session with the given status.
func (s *Session) Close(code websocket.StatusCode, reason string) error {
	s.markDone()
	return s.conn.Close(code, reason)
}

// Done is closed once the session has been closed or its read side failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) markDone() {
	s.closeOnce.Do(func() { close(s.done) })
}
