// Package broker relays peer connections between display tiles. Tiles
// register under their peer name; a connection opened to a name is a
// virtual stream carried over both tiles' broker sockets.
package broker

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/Ko-stant/tilewall/internal/errlog"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/ws"
)

// DefaultMaxPeers bounds how many peers may be registered at once.
const DefaultMaxPeers = 1024

const namespacePeer = "wall:peer"

var (
	// ErrPeerUnavailable is returned when dialing a name nobody registered.
	ErrPeerUnavailable = errors.New("broker: peer unavailable")
	// ErrNameTaken is returned when registering a name already in use.
	ErrNameTaken = errors.New("broker: name already registered")
	// ErrCapacity is returned when the broker is full.
	ErrCapacity = errors.New("broker: too many peers")
)

type route struct {
	dialer, target string
}

func (r route) other(name string) string {
	if r.dialer == name {
		return r.target
	}
	return r.dialer
}

// Server is the broker endpoint.
type Server struct {
	maxPeers int
	errors   *errlog.Recorder

	mu     sync.Mutex
	peers  map[string]*ws.Session
	routes map[string]route
}

// NewServer returns a broker accepting at most maxPeers registrations
// (DefaultMaxPeers if maxPeers <= 0).
func NewServer(maxPeers int, errs *errlog.Recorder) *Server {
	if maxPeers <= 0 {
		maxPeers = DefaultMaxPeers
	}
	return &Server{
		maxPeers: maxPeers,
		errors:   errs,
		peers:    make(map[string]*ws.Session),
		routes:   make(map[string]route),
	}
}

// Peers returns how many peers are registered.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing peer name", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}
	session := ws.NewSession(conn)
	ctx := r.Context()

	if msg := s.register(name, session); msg != "" {
		log.Printf("Refusing peer %s: %s", name, msg)
		_ = session.Send(ctx, protocol.PeerError, protocol.PeerFrame{Type: protocol.PeerError, Message: msg})
		_ = session.Close(websocket.StatusPolicyViolation, msg)
		return
	}
	defer s.unregister(name, session)

	log.Printf("Peer %s registered", name)
	if err := session.Send(ctx, protocol.PeerRegistered, protocol.PeerFrame{Type: protocol.PeerRegistered}); err != nil {
		log.Printf("Failed to acknowledge peer %s: %v", name, err)
		return
	}

	for {
		env, err := session.Read(ctx)
		if err != nil {
			if protocol.IsKind(err, protocol.KindProtocol) {
				s.record(err)
				continue
			}
			return
		}
		var frame protocol.PeerFrame
		if err := env.DecodePayload(&frame); err != nil {
			s.record(err)
			continue
		}
		frame.Type = env.Type
		s.handle(ctx, name, session, frame)
	}
}

func (s *Server) record(err error) {
	if s.errors != nil {
		s.errors.Record(namespacePeer, err)
		return
	}
	log.Printf("%s: %v", namespacePeer, err)
}

// register returns the refusal message, or "" if name was registered.
func (s *Server) register(name string, session *ws.Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.peers[name]; taken {
		return protocol.PeerUnavailableID
	}
	if len(s.peers) >= s.maxPeers {
		return protocol.PeerCapacity
	}
	s.peers[name] = session
	return ""
}

// unregister drops name and closes every virtual connection it was part of
// on the other end.
func (s *Server) unregister(name string, session *ws.Session) {
	type notice struct {
		to   *ws.Session
		conn string
	}
	var notices []notice

	s.mu.Lock()
	if s.peers[name] == session {
		delete(s.peers, name)
	}
	for id, rt := range s.routes {
		if rt.dialer != name && rt.target != name {
			continue
		}
		delete(s.routes, id)
		if other, ok := s.peers[rt.other(name)]; ok {
			notices = append(notices, notice{to: other, conn: id})
		}
	}
	s.mu.Unlock()

	for _, n := range notices {
		_ = n.to.Send(context.Background(), protocol.PeerClose, protocol.PeerFrame{Type: protocol.PeerClose, Conn: n.conn})
	}
	_ = session.Close(websocket.StatusNormalClosure, "")
	log.Printf("Peer %s left, closed %d connections", name, len(notices))
}

func (s *Server) handle(ctx context.Context, from string, session *ws.Session, frame protocol.PeerFrame) {
	if frame.Conn == "" {
		s.record(protocol.NewError(protocol.KindProtocol, "peer frame "+frame.Type+" from "+from+" without connection id", nil))
		return
	}

	switch frame.Type {
	case protocol.PeerOpen:
		s.mu.Lock()
		target, ok := s.peers[frame.To]
		_, dup := s.routes[frame.Conn]
		if ok && !dup {
			s.routes[frame.Conn] = route{dialer: from, target: frame.To}
		}
		s.mu.Unlock()

		if !ok || dup {
			_ = session.Send(ctx, protocol.PeerError, protocol.PeerFrame{
				Type: protocol.PeerError, Conn: frame.Conn, Message: protocol.PeerUnavailable,
			})
			return
		}
		offer := protocol.PeerFrame{Type: protocol.PeerOffer, Conn: frame.Conn, From: from}
		if err := target.Send(ctx, protocol.PeerOffer, offer); err != nil {
			log.Printf("Failed to offer %s to %s: %v", frame.Conn, frame.To, err)
		}
		_ = session.Send(ctx, protocol.PeerOpened, protocol.PeerFrame{Type: protocol.PeerOpened, Conn: frame.Conn})

	case protocol.PeerData, protocol.PeerClose:
		s.mu.Lock()
		rt, ok := s.routes[frame.Conn]
		if ok && rt.dialer != from && rt.target != from {
			ok = false
		}
		if ok && frame.Type == protocol.PeerClose {
			delete(s.routes, frame.Conn)
		}
		var other *ws.Session
		if ok {
			other = s.peers[rt.other(from)]
		}
		s.mu.Unlock()

		if other == nil {
			return
		}
		out := protocol.PeerFrame{Type: frame.Type, Conn: frame.Conn, Data: frame.Data}
		if err := other.Send(ctx, frame.Type, out); err != nil {
			log.Printf("Failed to relay %s on %s: %v", frame.Type, frame.Conn, err)
		}

	default:
		s.record(protocol.NewError(protocol.KindProtocol, "unknown peer frame "+frame.Type+" from "+from, nil))
	}
}
