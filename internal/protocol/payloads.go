package protocol

import "github.com/Ko-stant/tilewall/internal/geometry"

// WallConfig is sent with EventConfig at the start of the display handshake.
type WallConfig struct {
	Extents geometry.Rectangle `json:"extents"`
	XScale  float64            `json:"xscale"`
	YScale  float64            `json:"yscale"`
}

// ErrorReport is the payload of EventRecordError.
type ErrorReport struct {
	Stack     string `json:"stack,omitempty"`
	Message   string `json:"message"`
	Namespace string `json:"namespace,omitempty"`
}

// MonitorUpdate is a partial status map pushed with EventMonitor.
type MonitorUpdate map[string]any
