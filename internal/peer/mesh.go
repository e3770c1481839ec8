// Package peer links display tiles directly to their grid neighbours. Peers
// find each other by name: every tile advertises MakeName(module, x, y) and
// computes its neighbours' names from their coordinates.
package peer

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs f after d and returns a func that cancels it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Neighbor is a retained connection to the tile at X,Y.
type Neighbor struct {
	X, Y int
	Conn Conn
}

// Mesh owns the links and neighbour connections of one tile.
type Mesh struct {
	transport Transport
	moduleID  string
	x, y      int
	schedule  Scheduler

	ctx     context.Context
	cancel  context.CancelFunc
	closing atomic.Bool

	mu        sync.Mutex
	links     []*Link
	neighbors []Neighbor
}

// Option customizes a Mesh.
type Option func(*Mesh)

// WithScheduler replaces the timer used for retries.
func WithScheduler(s Scheduler) Option {
	return func(m *Mesh) { m.schedule = s }
}

// NewMesh builds the mesh of the tile at grid offset x,y, reachable through
// transport.
func NewMesh(transport Transport, moduleID string, x, y int, opts ...Option) (*Mesh, error) {
	if err := ValidateModuleID(moduleID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mesh{
		transport: transport,
		moduleID:  moduleID,
		x:         x,
		y:         y,
		schedule:  afterFunc,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name is this tile's advertised name.
func (m *Mesh) Name() string {
	return MakeName(m.moduleID, m.x, m.y)
}

func (m *Mesh) isClosing() bool {
	return m.closing.Load()
}

// Connect keeps a connection to the tile at x,y alive, relative to this
// tile's offset if relative is set. onOpen runs for every established
// connection; onClose runs when an open connection drops unexpectedly and
// returns whether to reconnect.
func (m *Mesh) Connect(x, y int, relative bool, onOpen func(Conn), onClose func(Conn) bool) *Link {
	if relative {
		x += m.x
		y += m.y
	}
	l := newLink(m, MakeName(m.moduleID, x, y), onOpen, onClose)

	m.mu.Lock()
	if m.isClosing() {
		m.mu.Unlock()
		l.close()
		return l
	}
	m.links = append(m.links, l)
	m.mu.Unlock()

	go l.start()
	return l
}

// Listen accepts connections from any peer and reports the grid position
// parsed from the remote name. Connections with unparseable names are
// closed.
func (m *Mesh) Listen(cb func(conn Conn, x, y int)) {
	m.transport.SetAcceptHandler(func(conn Conn) {
		if m.isClosing() {
			_ = conn.Close()
			return
		}
		x, y, err := ParseName(conn.Remote())
		if err != nil {
			log.Printf("Rejecting connection %s: %v", conn.ID(), err)
			_ = conn.Close()
			return
		}
		cb(conn, x, y)
	})
}

// ConnectToNeighbors links this tile to its 8 grid neighbours, both dialing
// and accepting since either side may come up first. At most one connection
// is retained per neighbour: of two, the one with the lower id survives on
// both ends. onData receives every message from a retained connection.
func (m *Mesh) ConnectToNeighbors(onData func(conn Conn, data []byte)) {
	m.Listen(func(conn Conn, x, y int) {
		log.Printf("Connection request from %d,%d", x, y)
		if m.retain(conn, x, y, onData) {
			conn.OnClose(func() { m.forget(conn) })
		}
	})

	log.Printf("Connecting to neighbors of %d,%d", m.x, m.y)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := m.x+dx, m.y+dy
			m.Connect(nx, ny, false, func(conn Conn) {
				log.Printf("Connection established to %d,%d", nx, ny)
				m.retain(conn, nx, ny, onData)
			}, func(conn Conn) bool {
				log.Printf("Disconnected from %d,%d", nx, ny)
				return m.forget(conn)
			})
		}
	}
}

// retain records conn as the neighbour at x,y unless a connection with a
// lower id is already held. It reports whether conn was kept.
func (m *Mesh) retain(conn Conn, x, y int, onData func(Conn, []byte)) bool {
	var drop Conn
	kept := true

	m.mu.Lock()
	if m.isClosing() {
		m.mu.Unlock()
		_ = conn.Close()
		return false
	}
	idx := -1
	for i, n := range m.neighbors {
		if n.X == x && n.Y == y {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		m.neighbors = append(m.neighbors, Neighbor{X: x, Y: y, Conn: conn})
		log.Printf("Connected to %d,%d", x, y)
	case m.neighbors[idx].Conn.ID() == conn.ID():
		m.mu.Unlock()
		return true
	case m.neighbors[idx].Conn.ID() > conn.ID():
		log.Printf("Already connected to %d,%d. Will drop existing.", x, y)
		drop = m.neighbors[idx].Conn
		m.neighbors[idx].Conn = conn
	default:
		log.Printf("Already connected to %d,%d. Will drop new.", x, y)
		drop = conn
		kept = false
	}
	m.mu.Unlock()

	if kept && onData != nil {
		conn.OnData(func(data []byte) { onData(conn, data) })
	}
	if drop != nil {
		_ = drop.Close()
	}
	return kept
}

// forget removes conn from the neighbours and reports whether it was held.
func (m *Mesh) forget(conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.neighbors {
		if n.Conn.ID() == conn.ID() {
			m.neighbors = append(m.neighbors[:i], m.neighbors[i+1:]...)
			return true
		}
	}
	return false
}

// unlink drops a closed link from the mesh.
func (m *Mesh) unlink(l *Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, held := range m.links {
		if held == l {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return
		}
	}
}

// Links returns the links the mesh is keeping alive.
func (m *Mesh) Links() []*Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Link, len(m.links))
	copy(out, m.links)
	return out
}

// Neighbors returns the currently retained neighbour connections.
func (m *Mesh) Neighbors() []Neighbor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Neighbor, len(m.neighbors))
	copy(out, m.neighbors)
	return out
}

// Close tears down every link and neighbour connection and the transport.
// Retry timers that are already running find the closing flag set and do
// nothing.
func (m *Mesh) Close() error {
	if !m.closing.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()

	m.mu.Lock()
	links, neighbors := m.links, m.neighbors
	m.links, m.neighbors = nil, nil
	m.mu.Unlock()

	for _, l := range links {
		l.close()
	}
	for _, n := range neighbors {
		_ = n.Conn.Close()
	}
	return m.transport.Close()
}
