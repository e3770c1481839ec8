package ws

import (
	"context"
	"log"
	"sync"

	"github.com/coder/websocket"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

// Hub is the set of sessions that receive broadcasts.
type Hub struct {
	mu      sync.Mutex
	clients map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Session]struct{})}
}

func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	h.clients[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	delete(h.clients, s)
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends an event to every session. Delivery is best effort: a
// session whose write fails is closed and dropped.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := protocol.Encode(eventType, payload)
	if err != nil {
		log.Printf("broadcast %s: %v", eventType, err)
		return
	}

	h.mu.Lock()
	targets := make([]*Session, 0, len(h.clients))
	for s := range h.clients {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if err := s.Write(context.Background(), data); err != nil {
			log.Printf("broadcast %s to %s failed: %v", eventType, s.ID, err)
			_ = s.Close(websocket.StatusNormalClosure, "")
			h.Remove(s)
		}
	}
}
