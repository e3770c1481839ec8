package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errUnavailable = errors.New("peer-unavailable")

// fakeNet is an in-memory broker. Connection ids are handed out in
// increasing order unless nextID is overridden.
type fakeNet struct {
	mu     sync.Mutex
	peers  map[string]*fakeTransport
	seq    int
	nextID func() string
	dials  int
}

func newFakeNet() *fakeNet {
	n := &fakeNet{peers: make(map[string]*fakeTransport)}
	n.nextID = func() string {
		n.seq++
		return fmt.Sprintf("c%03d", n.seq)
	}
	return n
}

func (n *fakeNet) join(name string) *fakeTransport {
	t := &fakeTransport{net: n, name: name}
	n.mu.Lock()
	n.peers[name] = t
	n.mu.Unlock()
	return t
}

func (n *fakeNet) dialCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials
}

type fakeTransport struct {
	net  *fakeNet
	name string

	mu     sync.Mutex
	accept func(Conn)
	closed bool
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Dial(ctx context.Context, name string) (Conn, error) {
	t.net.mu.Lock()
	t.net.dials++
	target, ok := t.net.peers[name]
	var id string
	if ok {
		id = t.net.nextID()
	}
	t.net.mu.Unlock()
	if !ok {
		return nil, errUnavailable
	}

	target.mu.Lock()
	accept, closed := target.accept, target.closed
	target.mu.Unlock()
	if accept == nil || closed {
		return nil, errUnavailable
	}

	local := &fakeConn{id: id, remote: name}
	remote := &fakeConn{id: id, remote: t.name}
	local.peer, remote.peer = remote, local
	accept(remote)
	return local, nil
}

func (t *fakeTransport) SetAcceptHandler(fn func(Conn)) {
	t.mu.Lock()
	t.accept = fn
	t.mu.Unlock()
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

type fakeConn struct {
	id     string
	remote string
	peer   *fakeConn

	mu      sync.Mutex
	onData  func([]byte)
	pending [][]byte
	onClose []func()
	closed  bool
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) Remote() string { return c.remote }

func (c *fakeConn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("closed")
	}
	c.peer.deliver(data)
	return nil
}

func (c *fakeConn) deliver(data []byte) {
	c.mu.Lock()
	h := c.onData
	if h == nil {
		c.pending = append(c.pending, data)
	}
	c.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func (c *fakeConn) OnData(fn func([]byte)) {
	c.mu.Lock()
	c.onData = fn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, d := range pending {
		fn(d)
	}
}

func (c *fakeConn) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.shutdown()
	c.peer.shutdown()
	return nil
}

func (c *fakeConn) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handlers := c.onClose
	c.onClose = nil
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// manualClock records scheduled retries; tests fire them by hand.
type manualClock struct {
	mu      sync.Mutex
	delays  []time.Duration
	funcs   []func()
	stopped []bool
}

func (c *manualClock) schedule(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.funcs)
	c.delays = append(c.delays, d)
	c.funcs = append(c.funcs, f)
	c.stopped = append(c.stopped, false)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		was := c.stopped[idx]
		c.stopped[idx] = true
		return !was
	}
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.funcs)
}

func (c *manualClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

// fire runs retry i even if it was stopped, like a timer already in flight.
func (c *manualClock) fire(i int) {
	c.mu.Lock()
	f := c.funcs[i]
	c.mu.Unlock()
	f()
}

func (c *manualClock) wasStopped(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped[i]
}
