package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/Ko-stant/tilewall/internal/geometry"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/ws"
)

var (
	// ErrNamespaceConflict is returned when a module channel is opened twice.
	ErrNamespaceConflict = errors.New("registry: module channel already open")
	// ErrNamespaceNotOpen is returned when closing a channel that is not open.
	ErrNamespaceNotOpen = errors.New("registry: module channel not open")
	// ErrChannelClosed is returned by operations on a closed channel.
	ErrChannelClosed = errors.New("registry: module channel closed")
)

// Namespace returns the websocket path of a module channel. Every non-digit
// of the id is replaced with X.
func Namespace(id ModuleID) string {
	var b strings.Builder
	b.WriteString("/module")
	for _, r := range string(id) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('X')
		}
	}
	return b.String()
}

// ModuleHandle opens and closes the channel of one module.
type ModuleHandle struct {
	r  *Registry
	id ModuleID
}

// ForModule returns the handle for id's channel.
func (r *Registry) ForModule(id ModuleID) ModuleHandle {
	return ModuleHandle{r: r, id: id}
}

// Open creates the module channel. Opening a channel that is already open
// is a lifecycle bug in the caller and fails with ErrNamespaceConflict.
func (h ModuleHandle) Open() (*ModuleChannel, error) {
	ns := Namespace(h.id)

	h.r.mu.Lock()
	if _, exists := h.r.modules[h.id]; exists {
		h.r.mu.Unlock()
		return nil, h.conflict(ns)
	}
	if _, exists := h.r.namespaces[ns]; exists {
		h.r.mu.Unlock()
		return nil, h.conflict(ns)
	}
	ch := &ModuleChannel{
		ID:        h.id,
		Namespace: ns,
		registry:  h.r,
		clients:   newClientSet(),
	}
	h.r.modules[h.id] = ch
	h.r.namespaces[ns] = h.id
	h.r.mu.Unlock()

	log.Printf("Opened per-module socket @ %s %s", h.id, ns)
	return ch, nil
}

func (h ModuleHandle) conflict(ns string) error {
	err := protocol.NewError(protocol.KindNamespaceConflict,
		fmt.Sprintf("module %s namespace %s", h.id, ns), ErrNamespaceConflict)
	log.Printf("BUG: %v", err)
	return err
}

// Close shuts the module channel down, see ModuleChannel.Close.
func (h ModuleHandle) Close() error {
	h.r.mu.RLock()
	ch, ok := h.r.modules[h.id]
	h.r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("close %s: %w", h.id, ErrNamespaceNotOpen)
	}
	ch.Close()
	return nil
}

// Channel returns the open channel for id.
func (h ModuleHandle) Channel() (*ModuleChannel, bool) {
	h.r.mu.RLock()
	defer h.r.mu.RUnlock()
	ch, ok := h.r.modules[h.id]
	return ch, ok
}

// Modules lists the open channels.
func (r *Registry) Modules() []*ModuleChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModuleChannel, 0, len(r.modules))
	for _, ch := range r.modules {
		out = append(out, ch)
	}
	return out
}

// ModuleChannel is the isolated connection namespace of one module. It owns
// the client connections made to it and any outbound sockets opened through
// it, and releases all of them on Close.
type ModuleChannel struct {
	ID        ModuleID
	Namespace string

	registry *Registry
	clients  *clientSet

	mu        sync.Mutex
	closed    bool
	sockets   []*websocket.Conn
	onMessage Handler
	onConnect func(*ClientInfo)
}

// OnMessage sets the handler for events sent by this channel's clients.
func (m *ModuleChannel) OnMessage(h Handler) {
	m.mu.Lock()
	m.onMessage = h
	m.mu.Unlock()
}

// OnConnect sets a callback run when a client joins the channel.
func (m *ModuleChannel) OnConnect(fn func(*ClientInfo)) {
	m.mu.Lock()
	m.onConnect = fn
	m.mu.Unlock()
}

// Clients returns the tracked clients in connection order.
func (m *ModuleChannel) Clients() []*ClientInfo {
	return m.clients.all()
}

// ClientsInRect returns the tracked clients whose rectangle overlaps rect.
func (m *ModuleChannel) ClientsInRect(rect geometry.Rectangle) []*ClientInfo {
	return m.clients.inRect(rect)
}

// Broadcast sends an event to every client of the channel.
func (m *ModuleChannel) Broadcast(ctx context.Context, eventType string, payload any) {
	for _, c := range m.clients.all() {
		if err := c.Send(ctx, eventType, payload); err != nil {
			log.Printf("Module %s send %s to %s failed: %v", m.ID, eventType, c.ID, err)
		}
	}
}

// OpenExternalSocket dials an outbound websocket owned by this channel.
func (m *ModuleChannel) OpenExternalSocket(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, protocol.NewError(protocol.KindConnection, "module "+string(m.ID)+" dial "+url, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = conn.Close(websocket.StatusGoingAway, "module closed")
		return nil, ErrChannelClosed
	}
	m.sockets = append(m.sockets, conn)
	return conn, nil
}

// Close disconnects every tracked client and outbound socket and frees the
// module id so it can be opened again.
func (m *ModuleChannel) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sockets := m.sockets
	m.sockets = nil
	m.onMessage = nil
	m.onConnect = nil
	m.mu.Unlock()

	r := m.registry
	r.mu.Lock()
	if r.modules[m.ID] == m {
		delete(r.modules, m.ID)
		delete(r.namespaces, m.Namespace)
	}
	r.mu.Unlock()

	for _, c := range m.clients.drain() {
		_ = c.session.Close(websocket.StatusGoingAway, "module closed")
	}
	for _, s := range sockets {
		_ = s.Close(websocket.StatusGoingAway, "module closed")
	}
	log.Printf("Closed per-module socket @ %s", m.ID)
}

// track adds a client unless the channel has been closed.
func (m *ModuleChannel) track(c *ClientInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.clients.add(c)
	return true
}

func (m *ModuleChannel) handlers() (Handler, func(*ClientInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onMessage, m.onConnect
}

func (r *Registry) serveModule(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	id, ok := r.namespaces[req.URL.Path]
	ch := r.modules[id]
	r.mu.RUnlock()
	if !ok || ch == nil {
		http.Error(w, "unknown module namespace", http.StatusNotFound)
		return
	}

	q := req.URL.Query()
	rect, err := parseRect(q.Get("rect"))
	if err != nil || q.Get("id") == "" {
		if err == nil {
			err = protocol.NewError(protocol.KindProtocol, "module connection without id", nil)
		}
		r.errors.Record(namespaceModule, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}
	s := ws.NewSession(conn)
	defer s.Close(websocket.StatusNormalClosure, "")

	client := newClientInfo(s, rect, ModuleID(q.Get("id")))
	if !ch.track(client) {
		return
	}
	log.Printf("Tracking per-module connection %s from %s (%d clients)", client.ModuleID, rect, len(ch.clients.all()))
	if _, onConnect := ch.handlers(); onConnect != nil {
		onConnect(client)
	}

	r.readLoop(req.Context(), s, func(env protocol.Envelope) {
		if h, _ := ch.handlers(); h != nil {
			h(client, env)
		}
	})

	if ch.clients.remove(client.ID) {
		log.Printf("Tracking per-module disconnect %s from %s (%d clients)", client.ModuleID, rect, len(ch.clients.all()))
	}
}
