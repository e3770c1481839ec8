package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Ko-stant/tilewall/internal/peer"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/ws"
)

// ErrClosed is returned by operations on a closed client or connection.
var ErrClosed = errors.New("broker: closed")

// Client is a peer registered with a broker. It implements peer.Transport.
type Client struct {
	name    string
	session *ws.Session

	mu      sync.Mutex
	accept  func(peer.Conn)
	offered []*Conn
	dials   map[string]chan error
	conns   map[string]*Conn
	closed  bool
}

var _ peer.Transport = (*Client)(nil)

// Connect registers name with the broker at serverURL, e.g.
// "ws://host:8080/peerjs".
func Connect(ctx context.Context, serverURL, name string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, protocol.NewError(protocol.KindConfig, "bad broker url "+serverURL, err)
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, protocol.NewError(protocol.KindConnection, "dial broker "+serverURL, err)
	}
	session := ws.NewSession(conn)

	env, err := session.Read(ctx)
	if err != nil {
		_ = session.Close(websocket.StatusNormalClosure, "")
		return nil, protocol.NewError(protocol.KindConnection, "register "+name, err)
	}
	switch env.Type {
	case protocol.PeerRegistered:
	case protocol.PeerError:
		var frame protocol.PeerFrame
		_ = env.DecodePayload(&frame)
		_ = session.Close(websocket.StatusNormalClosure, "")
		if frame.Message == protocol.PeerCapacity {
			return nil, protocol.NewError(protocol.KindCapacity, "register "+name, ErrCapacity)
		}
		return nil, fmt.Errorf("register %s: %w", name, ErrNameTaken)
	default:
		_ = session.Close(websocket.StatusProtocolError, "")
		return nil, protocol.NewError(protocol.KindProtocol, "unexpected broker frame "+env.Type, nil)
	}

	c := &Client{
		name:    name,
		session: session,
		dials:   make(map[string]chan error),
		conns:   make(map[string]*Conn),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Name() string { return c.name }

// Done is closed when the broker connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.session.Done()
}

// Dial opens a connection to the peer registered as name. The connection
// id is generated here and shared with the other end.
func (c *Client) Dial(ctx context.Context, name string) (peer.Conn, error) {
	id := uuid.NewString()
	conn := newConn(c, id, name)
	result := make(chan error, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.dials[id] = result
	c.conns[id] = conn
	c.mu.Unlock()

	open := protocol.PeerFrame{Type: protocol.PeerOpen, Conn: id, To: name}
	if err := c.session.Send(ctx, protocol.PeerOpen, open); err != nil {
		c.abandon(id)
		return nil, protocol.NewError(protocol.KindConnection, "dial "+name, err)
	}

	select {
	case err := <-result:
		if err != nil {
			c.abandon(id)
			return nil, protocol.NewError(protocol.KindConnection, "dial "+name, err)
		}
		return conn, nil
	case <-ctx.Done():
		c.abandon(id)
		_ = c.sendClose(id)
		return nil, protocol.NewError(protocol.KindConnection, "dial "+name, ctx.Err())
	}
}

func (c *Client) abandon(id string) {
	c.mu.Lock()
	delete(c.dials, id)
	delete(c.conns, id)
	c.mu.Unlock()
}

// SetAcceptHandler sets the callback for connections offered by other
// peers. Offers received before a handler is set are delivered to it.
func (c *Client) SetAcceptHandler(fn func(peer.Conn)) {
	c.mu.Lock()
	c.accept = fn
	offered := c.offered
	c.offered = nil
	c.mu.Unlock()

	for _, conn := range offered {
		fn(conn)
	}
}

// Close closes every connection and unregisters from the broker.
func (c *Client) Close() error {
	c.shutdown()
	return c.session.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conns := c.conns
	dials := c.dials
	c.conns = make(map[string]*Conn)
	c.dials = make(map[string]chan error)
	c.mu.Unlock()

	for _, result := range dials {
		result <- ErrClosed
	}
	for _, conn := range conns {
		conn.shutdown()
	}
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		env, err := c.session.Read(context.Background())
		if err != nil {
			if protocol.IsKind(err, protocol.KindProtocol) {
				log.Printf("Peer %s: %v", c.name, err)
				continue
			}
			return
		}
		var frame protocol.PeerFrame
		if err := env.DecodePayload(&frame); err != nil {
			log.Printf("Peer %s: %v", c.name, err)
			continue
		}
		c.handle(env.Type, frame)
	}
}

func (c *Client) handle(frameType string, frame protocol.PeerFrame) {
	switch frameType {
	case protocol.PeerOpened, protocol.PeerError:
		c.mu.Lock()
		result, ok := c.dials[frame.Conn]
		delete(c.dials, frame.Conn)
		c.mu.Unlock()
		if !ok {
			if frameType == protocol.PeerError {
				log.Printf("Peer %s: broker error %s", c.name, frame.Message)
			}
			return
		}
		if frameType == protocol.PeerError {
			result <- ErrPeerUnavailable
		} else {
			result <- nil
		}

	case protocol.PeerOffer:
		conn := newConn(c, frame.Conn, frame.From)
		c.mu.Lock()
		c.conns[frame.Conn] = conn
		accept := c.accept
		if accept == nil {
			c.offered = append(c.offered, conn)
		}
		c.mu.Unlock()
		if accept != nil {
			accept(conn)
		}

	case protocol.PeerData:
		c.mu.Lock()
		conn, ok := c.conns[frame.Conn]
		c.mu.Unlock()
		if ok {
			conn.deliver(frame.Data)
		}

	case protocol.PeerClose:
		c.mu.Lock()
		conn, ok := c.conns[frame.Conn]
		delete(c.conns, frame.Conn)
		c.mu.Unlock()
		if ok {
			conn.shutdown()
		}
	}
}

func (c *Client) send(ctx context.Context, frame protocol.PeerFrame) error {
	return c.session.Send(ctx, frame.Type, frame)
}

func (c *Client) sendClose(id string) error {
	return c.send(context.Background(), protocol.PeerFrame{Type: protocol.PeerClose, Conn: id})
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.conns, id)
	c.mu.Unlock()
}

// Conn is one virtual connection relayed by the broker.
type Conn struct {
	id     string
	remote string
	client *Client

	mu      sync.Mutex
	onData  func([]byte)
	pending [][]byte
	onClose []func()
	closed  bool
}

var _ peer.Conn = (*Conn)(nil)

func newConn(c *Client, id, remote string) *Conn {
	return &Conn{id: id, remote: remote, client: c}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) Remote() string { return c.remote }

func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.client.send(ctx, protocol.PeerFrame{Type: protocol.PeerData, Conn: c.id, Data: data})
}

func (c *Conn) OnData(fn func([]byte)) {
	c.mu.Lock()
	c.onData = fn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, data := range pending {
		fn(data)
	}
}

func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Close ends the connection on both ends.
func (c *Conn) Close() error {
	if !c.shutdown() {
		return nil
	}
	c.client.forget(c.id)
	return c.client.sendClose(c.id)
}

func (c *Conn) deliver(data []byte) {
	c.mu.Lock()
	fn := c.onData
	if fn == nil && !c.closed {
		c.pending = append(c.pending, data)
	}
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// shutdown marks the connection closed and runs the close callbacks. It
// reports whether this call did the closing.
func (c *Conn) shutdown() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	handlers := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
	return true
}
