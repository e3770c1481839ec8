package peer

import (
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	InitialDelay = 500 * time.Millisecond
	MaxDelay     = 10 * time.Second
)

// State is the lifecycle position of a Link.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// nextDelay doubles d up to MaxDelay.
func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Link keeps one outbound connection to a named peer alive. Failed dials
// are retried forever with capped exponential backoff; an unexpected close
// of an open connection asks the owner's close handler whether to redial.
type Link struct {
	mesh    *Mesh
	name    string
	onOpen  func(Conn)
	onClose func(Conn) bool

	mu      sync.Mutex
	state   State
	attempt int
	delay   time.Duration
	stop    func() bool
	conn    Conn
}

func newLink(m *Mesh, name string, onOpen func(Conn), onClose func(Conn) bool) *Link {
	return &Link{
		mesh:    m,
		name:    name,
		onOpen:  onOpen,
		onClose: onClose,
		state:   StateIdle,
		delay:   InitialDelay,
	}
}

// Name is the peer this link connects to.
func (l *Link) Name() string { return l.name }

// State returns the current state, retry attempt and backoff delay.
func (l *Link) State() (State, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.attempt, l.delay
}

func (l *Link) start() {
	l.mu.Lock()
	l.state = StateConnecting
	l.attempt = 0
	l.mu.Unlock()
	l.dial()
}

// dial runs one connection attempt. It is also the retry timer callback,
// so it checks for shutdown before doing anything.
func (l *Link) dial() {
	l.mu.Lock()
	if l.mesh.isClosing() || l.state != StateConnecting {
		attempt := l.attempt
		l.mu.Unlock()
		if attempt > 0 {
			log.Printf("Aborted connection retry to %s due to close", l.name)
		}
		return
	}
	l.stop = nil
	l.mu.Unlock()

	conn, err := l.mesh.transport.Dial(l.mesh.ctx, l.name)
	if err != nil {
		l.failed(err)
		return
	}
	l.opened(conn)
}

func (l *Link) failed(err error) {
	l.mu.Lock()
	if l.mesh.isClosing() || l.state != StateConnecting {
		l.mu.Unlock()
		return
	}
	l.delay = nextDelay(l.delay)
	l.attempt++
	attempt, delay := l.attempt, l.delay
	l.stop = l.mesh.schedule(delay, l.dial)
	l.mu.Unlock()

	if attempt == 1 {
		log.Printf("Failed connecting to initial peer %s, retry in %v: %v", l.name, delay, err)
	} else {
		log.Printf("Failed reconnecting to peer %s (attempt %d), retry in %v: %v", l.name, attempt, delay, err)
	}
}

func (l *Link) opened(conn Conn) {
	l.mu.Lock()
	if l.mesh.isClosing() || l.state != StateConnecting {
		l.mu.Unlock()
		_ = conn.Close()
		return
	}
	l.state = StateOpen
	l.delay = InitialDelay
	l.attempt = 0
	l.conn = conn
	l.mu.Unlock()

	log.Printf("Established connection to peer %s (%s)", l.name, conn.ID())
	if l.onOpen != nil {
		l.onOpen(conn)
	}
	conn.OnClose(func() { l.dropped(conn) })
}

func (l *Link) dropped(conn Conn) {
	l.mu.Lock()
	if l.mesh.isClosing() || l.state != StateOpen || l.conn != conn {
		l.mu.Unlock()
		return
	}
	l.conn = nil
	l.mu.Unlock()

	log.Printf("Connection to peer %s dropped", l.name)
	retry := l.onClose != nil && l.onClose(conn)

	l.mu.Lock()
	if l.state != StateOpen {
		l.mu.Unlock()
		return
	}
	if !retry {
		l.state = StateClosed
		l.mu.Unlock()
		l.mesh.unlink(l)
		return
	}
	l.state = StateConnecting
	l.mu.Unlock()
	// Close callbacks can run on the transport's read goroutine, which
	// the dial waits on.
	go l.dial()
}

// close stops any pending retry and closes the current connection.
func (l *Link) close() {
	l.mu.Lock()
	l.state = StateClosing
	stop, conn := l.stop, l.conn
	l.stop, l.conn = nil, nil
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		_ = conn.Close()
	}

	l.mu.Lock()
	l.state = StateClosed
	l.mu.Unlock()
}
