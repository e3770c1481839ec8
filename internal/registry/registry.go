package registry

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/Ko-stant/tilewall/internal/clocksync"
	"github.com/Ko-stant/tilewall/internal/errlog"
	"github.com/Ko-stant/tilewall/internal/geometry"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/wall"
	"github.com/Ko-stant/tilewall/internal/ws"
)

const (
	// DefaultHandshakeTimeout bounds how long a display client may take to
	// answer the config request.
	DefaultHandshakeTimeout = 10 * time.Second

	namespaceNetwork = "wall:network"
	namespaceModule  = "wall:module"
)

// Options configures a Registry. Zero values select defaults; a negative
// HandshakeTimeout disables the bound.
type Options struct {
	HandshakeTimeout time.Duration
}

// Handler processes an event from a registered display client.
type Handler func(client *ClientInfo, env protocol.Envelope)

// Registry owns every display client connection and module channel of the
// wall server.
type Registry struct {
	walls  *wall.Store
	errors *errlog.Recorder
	clock  *clocksync.Responder
	hub    *ws.Hub

	clients          *clientSet
	handshakeTimeout time.Duration

	mu         sync.RWMutex
	observers  map[int]Observer
	nextObs    int
	handlers   map[string]Handler
	modules    map[ModuleID]*ModuleChannel
	namespaces map[string]ModuleID
}

func New(walls *wall.Store, errs *errlog.Recorder, opts Options) *Registry {
	timeout := opts.HandshakeTimeout
	if timeout == 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &Registry{
		walls:            walls,
		errors:           errs,
		clock:            clocksync.NewResponder(),
		hub:              ws.NewHub(),
		clients:          newClientSet(),
		handshakeTimeout: timeout,
		observers:        make(map[int]Observer),
		handlers:         make(map[string]Handler),
		modules:          make(map[ModuleID]*ModuleChannel),
		namespaces:       make(map[string]ModuleID),
	}
}

// Subscribe registers an observer for lifecycle events. The returned func
// removes it.
func (r *Registry) Subscribe(obs Observer) func() {
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = obs
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

func (r *Registry) emit(ev Event) {
	r.mu.RLock()
	obs := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		obs = append(obs, o)
	}
	r.mu.RUnlock()

	for _, o := range obs {
		o(ev)
	}
}

// Handle installs a handler for an event type sent by registered display
// clients. A later call for the same type replaces the earlier handler.
func (r *Registry) Handle(eventType string, h Handler) {
	r.mu.Lock()
	r.handlers[eventType] = h
	r.mu.Unlock()
}

func (r *Registry) handler(eventType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	return h, ok
}

// Clients returns the registered display clients in registration order.
func (r *Registry) Clients() []*ClientInfo {
	return r.clients.all()
}

// Client looks up a registered display client.
func (r *Registry) Client(id ClientID) (*ClientInfo, bool) {
	return r.clients.get(id)
}

// ClientsInRect returns registered display clients overlapping rect.
func (r *Registry) ClientsInRect(rect geometry.Rectangle) []*ClientInfo {
	return r.clients.inRect(rect)
}

// Broadcast sends an event to every registered display client. Delivery is
// best effort.
func (r *Registry) Broadcast(eventType string, payload any) {
	r.hub.Broadcast(eventType, payload)
}

// ServeHTTP accepts display connections on any path and module channel
// connections on "/module<id>" paths.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/module") {
		r.serveModule(w, req)
		return
	}

	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}
	s := ws.NewSession(conn)
	defer s.Close(websocket.StatusNormalClosure, "")

	if req.URL.Query().Get("id") != "" {
		// Not a main display connection; it only gets the always-available
		// handlers.
		r.readLoop(req.Context(), s, func(protocol.Envelope) {})
		return
	}

	log.Printf("New client: %s", s.ID)
	r.serveDisplay(req.Context(), s)
}

func (r *Registry) serveDisplay(ctx context.Context, s *ws.Session) {
	var answered atomic.Bool
	var client *ClientInfo

	if r.handshakeTimeout > 0 {
		timer := time.AfterFunc(r.handshakeTimeout, func() {
			if answered.CompareAndSwap(false, true) {
				r.errors.Record(namespaceNetwork, protocol.NewError(protocol.KindProtocol,
					"client "+s.ID+" did not answer config in "+r.handshakeTimeout.String(), nil))
				_ = s.Close(websocket.StatusPolicyViolation, "handshake timeout")
			}
		})
		defer timer.Stop()
	}

	geo := r.walls.Snapshot()
	cfg := protocol.WallConfig{Extents: geo.Derived.Extents, XScale: geo.XScale, YScale: geo.YScale}
	if err := s.Send(ctx, protocol.EventConfig, cfg); err != nil {
		log.Printf("Failed to send config to %s: %v", s.ID, err)
		return
	}

	r.readLoop(ctx, s, func(env protocol.Envelope) {
		switch {
		case env.Type == protocol.EventConfigResponse:
			if !answered.CompareAndSwap(false, true) {
				return
			}
			rect, err := decodeRect(env)
			if err != nil {
				r.errors.Record(namespaceNetwork, err)
				_ = s.Close(websocket.StatusPolicyViolation, "bad client config")
				return
			}
			client = newClientInfo(s, rect, "")
			r.clients.add(client)
			r.hub.Add(s)
			log.Printf("Client %s renders %s", client.ID, rect)
			r.emit(NewClient{Client: client})
		case client != nil:
			if h, ok := r.handler(env.Type); ok {
				h(client, env)
			}
		}
	})

	if client != nil {
		r.hub.Remove(s)
		r.clients.remove(client.ID)
		log.Printf("Lost a client! %s", client.ID)
		r.emit(LostClient{ID: client.ID})
	}
}

// readLoop reads envelopes until the session ends. Time requests and error
// reports are answered here, rate limited; everything else goes to handle.
func (r *Registry) readLoop(ctx context.Context, s *ws.Session, handle func(protocol.Envelope)) {
	for {
		env, err := s.Read(ctx)
		if err != nil {
			if protocol.IsKind(err, protocol.KindProtocol) {
				r.errors.Record(namespaceNetwork, err)
				continue
			}
			if !isNormalClose(err) {
				log.Printf("Session %s ended: %v", s.ID, err)
			}
			return
		}

		switch env.Type {
		case protocol.EventTime:
			if !s.Allow() {
				log.Printf("Dropping time request from %s: rate limited", s.ID)
				continue
			}
			if err := s.Send(ctx, protocol.EventTime, r.clock.Reply()); err != nil {
				log.Printf("Failed to answer time request from %s: %v", s.ID, err)
			}
		case protocol.EventRecordError:
			if !s.Allow() {
				log.Printf("Dropping error report from %s: rate limited", s.ID)
				continue
			}
			var report protocol.ErrorReport
			if err := env.DecodePayload(&report); err != nil {
				r.errors.Record(namespaceNetwork, err)
				continue
			}
			r.errors.RecordClient(report)
		default:
			handle(env)
		}
	}
}

func decodeRect(env protocol.Envelope) (geometry.Rectangle, error) {
	var serialized string
	if err := env.DecodePayload(&serialized); err != nil {
		return geometry.Rectangle{}, err
	}
	return parseRect(serialized)
}

func parseRect(serialized string) (geometry.Rectangle, error) {
	rect, err := geometry.ParseRectangle(serialized)
	if err != nil {
		return geometry.Rectangle{}, protocol.NewError(protocol.KindProtocol, "bad client config", err)
	}
	return rect, nil
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
