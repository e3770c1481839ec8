package protocol

import (
	"encoding/json"
	"fmt"
)

// Event names on the display and module websockets.
const (
	EventConfig            = "config"
	EventConfigResponse    = "config-response"
	EventTime              = "time"
	EventRecordError       = "record-error"
	EventEnableMonitoring  = "enable-monitoring"
	EventDisableMonitoring = "disable-monitoring"
	EventMonitor           = "monitor"
)

// Envelope is the frame used on every websocket: an event name and its
// JSON payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals payload into an envelope of the given type. A nil payload
// produces an envelope without one.
func Encode(eventType string, payload any) ([]byte, error) {
	env := Envelope{Type: eventType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame into its envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, NewError(KindProtocol, "failed to unmarshal envelope", err)
	}
	if env.Type == "" {
		return Envelope{}, NewError(KindProtocol, "envelope without type", nil)
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return NewError(KindProtocol, "missing "+e.Type+" payload", nil)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return NewError(KindProtocol, "bad "+e.Type+" payload", err)
	}
	return nil
}
