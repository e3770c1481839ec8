package protocol

import (
	"time"

	"github.com/Ko-stant/tilewall/internal/geometry"
)

type ClientStatus struct {
	ID   string             `json:"id"`
	Rect geometry.Rectangle `json:"rect"`
}

type ModuleStatus struct {
	ID        string         `json:"id"`
	Namespace string         `json:"namespace"`
	Clients   []ClientStatus `json:"clients"`
}

// ErrorRecord is one entry of the recent error buffer.
type ErrorRecord struct {
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	Namespace string    `json:"namespace,omitempty"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
}

// StatusSnapshot is the operational view served on /status.
type StatusSnapshot struct {
	Extents geometry.Rectangle `json:"extents"`
	XScale  float64            `json:"xscale"`
	YScale  float64            `json:"yscale"`
	Screens int                `json:"screens"`
	Regions int                `json:"regions"`
	Clients []ClientStatus     `json:"clients"`
	Modules []ModuleStatus     `json:"modules"`
	Errors  []ErrorRecord      `json:"errors"`
}
