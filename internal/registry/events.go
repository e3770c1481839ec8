package registry

// Event is a client lifecycle notification. It is one of NewClient or
// LostClient.
type Event interface {
	isEvent()
}

// NewClient is emitted once a display client completes its handshake.
type NewClient struct {
	Client *ClientInfo
}

// LostClient is emitted when a registered display client disconnects.
type LostClient struct {
	ID ClientID
}

func (NewClient) isEvent()  {}
func (LostClient) isEvent() {}

// Observer receives lifecycle events. It must not block.
type Observer func(Event)
