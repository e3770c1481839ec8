package peer

import "context"

// Conn is one reliable, ordered connection to another peer.
type Conn interface {
	// ID is assigned by the transport and identical on both ends.
	ID() string
	// Remote is the advertised name of the other end.
	Remote() string
	Send(ctx context.Context, data []byte) error
	// OnData sets the handler for incoming messages. Messages that arrive
	// before a handler is set are held and delivered once it is.
	OnData(func([]byte))
	// OnClose adds a callback run once when the connection ends. If it has
	// already ended the callback runs immediately.
	OnClose(func())
	Close() error
}

// Transport registers this peer under a name and opens connections to
// other names.
type Transport interface {
	Name() string
	// Dial blocks until the named peer accepts or the attempt fails.
	Dial(ctx context.Context, name string) (Conn, error)
	// SetAcceptHandler sets the callback for connections opened by others.
	SetAcceptHandler(func(Conn))
	Close() error
}
