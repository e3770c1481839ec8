package protocol

// Frame types exchanged between a peer and the broker.
const (
	PeerRegistered = "registered"
	PeerOpen       = "open"
	PeerOffer      = "offer"
	PeerOpened     = "opened"
	PeerData       = "data"
	PeerClose      = "close"
	PeerError      = "error"
)

// Error messages carried in PeerError frames.
const (
	PeerUnavailable   = "peer-unavailable"
	PeerUnavailableID = "unavailable-id"
	PeerCapacity      = "capacity"
)

// PeerFrame is the single frame shape of the broker protocol. Conn is the
// dialer-assigned connection id shared by both ends.
type PeerFrame struct {
	Type    string `json:"type"`
	Conn    string `json:"conn,omitempty"`
	To      string `json:"to,omitempty"`
	From    string `json:"from,omitempty"`
	Data    []byte `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
