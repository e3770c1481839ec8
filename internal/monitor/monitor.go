// Package monitor pushes server status to display clients that ask for it.
package monitor

import (
	"context"
	"log"
	"maps"
	"sync"

	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/registry"
)

// Monitor holds the current status and the clients subscribed to it.
// Nothing is pushed until Enable is called.
type Monitor struct {
	mu          sync.Mutex
	enabled     bool
	status      protocol.MonitorUpdate
	subscribers map[registry.ClientID]*registry.ClientInfo
}

// New installs the enable-monitoring and disable-monitoring handlers on reg.
func New(reg *registry.Registry) *Monitor {
	m := &Monitor{
		status:      protocol.MonitorUpdate{},
		subscribers: make(map[registry.ClientID]*registry.ClientInfo),
	}
	reg.Handle(protocol.EventEnableMonitoring, func(c *registry.ClientInfo, _ protocol.Envelope) {
		m.subscribe(c)
	})
	reg.Handle(protocol.EventDisableMonitoring, func(c *registry.ClientInfo, _ protocol.Envelope) {
		m.unsubscribe(c.ID)
	})
	reg.Subscribe(func(ev registry.Event) {
		if lost, ok := ev.(registry.LostClient); ok {
			m.unsubscribe(lost.ID)
		}
	})
	return m
}

func (m *Monitor) subscribe(c *registry.ClientInfo) {
	m.mu.Lock()
	m.subscribers[c.ID] = c
	state := maps.Clone(m.status)
	m.mu.Unlock()

	log.Printf("Client %s enabled monitoring", c.ID)
	push(c, state)
}

func (m *Monitor) unsubscribe(id registry.ClientID) {
	m.mu.Lock()
	delete(m.subscribers, id)
	m.mu.Unlock()
}

// IsEnabled reports whether updates are being recorded and pushed.
func (m *Monitor) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Enable starts monitoring and sends the current state to every subscriber.
func (m *Monitor) Enable() {
	m.mu.Lock()
	m.enabled = true
	state := maps.Clone(m.status)
	targets := m.targets()
	m.mu.Unlock()

	for _, c := range targets {
		push(c, state)
	}
}

// Update merges change into the status and pushes it to subscribers. It is
// a no-op while monitoring is disabled.
func (m *Monitor) Update(change protocol.MonitorUpdate) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	maps.Copy(m.status, change)
	targets := m.targets()
	m.mu.Unlock()

	for _, c := range targets {
		push(c, change)
	}
}

// Status returns a copy of the current status.
func (m *Monitor) Status() protocol.MonitorUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.status)
}

func (m *Monitor) targets() []*registry.ClientInfo {
	out := make([]*registry.ClientInfo, 0, len(m.subscribers))
	for _, c := range m.subscribers {
		out = append(out, c)
	}
	return out
}

func push(c *registry.ClientInfo, update protocol.MonitorUpdate) {
	if err := c.Send(context.Background(), protocol.EventMonitor, update); err != nil {
		log.Printf("Failed to push monitor update to %s: %v", c.ID, err)
	}
}
