package qr

import (
	"encoding/json"
	"errors"
)

// EventType says whether a scan records arrival or departure.
type EventType string

const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventEntry || t == EventExit
}

// Payload is the wire content of a session QR code: exactly two required
// string fields, no envelope or versioning.
type Payload struct {
	SessionID string    `json:"sessionId"`
	EventType EventType `json:"eventType"`
}

// ErrInvalidPayload covers malformed JSON and missing or unknown fields.
var ErrInvalidPayload = errors.New("invalid QR payload")

// Validate checks the payload has both required fields.
func (p Payload) Validate() error {
	if p.SessionID == "" || !p.EventType.Valid() {
		return ErrInvalidPayload
	}
	return nil
}

// Marshal serializes the payload for encoding.
func (p Payload) Marshal() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// ParsePayload decodes raw scanned text into a validated payload.
func ParsePayload(text string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Payload{}, ErrInvalidPayload
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}
