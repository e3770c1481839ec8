package registry

import (
	"context"
	"sync"

	"github.com/Ko-stant/tilewall/internal/geometry"
	"github.com/Ko-stant/tilewall/internal/ws"
)

// ModuleID names a logical module and its channel.
type ModuleID string

// ClientID is the identity of one client connection.
type ClientID string

// ClientInfo binds a connection to the wall rectangle it renders.
type ClientInfo struct {
	ID       ClientID
	Rect     geometry.Rectangle
	ModuleID ModuleID

	session *ws.Session
}

func newClientInfo(s *ws.Session, rect geometry.Rectangle, module ModuleID) *ClientInfo {
	return &ClientInfo{
		ID:       ClientID(s.ID),
		Rect:     rect,
		ModuleID: module,
		session:  s,
	}
}

// Send delivers one event to this client.
func (c *ClientInfo) Send(ctx context.Context, eventType string, payload any) error {
	return c.session.Send(ctx, eventType, payload)
}

// Session is the underlying connection.
func (c *ClientInfo) Session() *ws.Session {
	return c.session
}

// clientSet keeps clients in insertion order with lookup by id.
type clientSet struct {
	mu    sync.RWMutex
	order []*ClientInfo
	byID  map[ClientID]*ClientInfo
}

func newClientSet() *clientSet {
	return &clientSet{byID: make(map[ClientID]*ClientInfo)}
}

func (cs *clientSet) add(c *ClientInfo) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.byID[c.ID]; exists {
		return
	}
	cs.byID[c.ID] = c
	cs.order = append(cs.order, c)
}

// remove drops the client and reports whether it was tracked.
func (cs *clientSet) remove(id ClientID) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.byID[id]; !exists {
		return false
	}
	delete(cs.byID, id)
	for i, c := range cs.order {
		if c.ID == id {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			break
		}
	}
	return true
}

func (cs *clientSet) get(id ClientID) (*ClientInfo, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.byID[id]
	return c, ok
}

func (cs *clientSet) all() []*ClientInfo {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]*ClientInfo, len(cs.order))
	copy(out, cs.order)
	return out
}

// inRect returns the clients whose rectangle overlaps rect, in insertion order.
func (cs *clientSet) inRect(rect geometry.Rectangle) []*ClientInfo {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	var out []*ClientInfo
	for _, c := range cs.order {
		if rect.Intersects(c.Rect) {
			out = append(out, c)
		}
	}
	return out
}

// drain empties the set and returns what it held.
func (cs *clientSet) drain() []*ClientInfo {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := cs.order
	cs.order = nil
	cs.byID = make(map[ClientID]*ClientInfo)
	return out
}
