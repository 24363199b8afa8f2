package domain

import (
	"encoding/json"
	"fmt"
)

// EventType names a Sync Channel event.
type EventType string

const (
	EventStrokeAdded EventType = "stroke-added"
	EventErase       EventType = "erase"
)

// Event is the wire envelope for the Sync Channel. Exactly one of the
// stroke-added or erase field groups is populated according to Type.
type Event struct {
	Type  EventType `json:"type"`
	Owner string    `json:"owner"`

	// stroke-added
	Stroke *Stroke `json:"stroke,omitempty"`

	// erase. Radius is in screen pixels at Zoom; a nil Zoom means the
	// receiver's current zoom.
	Epicenter *Point   `json:"epicenter,omitempty"`
	Radius    float64  `json:"radius,omitempty"`
	Zoom      *float64 `json:"zoom,omitempty"`
}

// StrokeAdded builds a stroke-added event.
func StrokeAdded(owner string, s Stroke) Event {
	sc := s.Clone()
	return Event{Type: EventStrokeAdded, Owner: owner, Stroke: &sc}
}

// Erase builds an erase event issued at the given zoom.
func Erase(owner string, epicenter Point, radius, zoom float64) Event {
	return Event{Type: EventErase, Owner: owner, Epicenter: &epicenter, Radius: radius, Zoom: &zoom}
}

// Validate checks the envelope shape. It does not check ownership.
func (e Event) Validate() error {
	if e.Owner == "" {
		return fmt.Errorf("%w: missing owner", ErrMalformedEvent)
	}
	switch e.Type {
	case EventStrokeAdded:
		if e.Stroke == nil {
			return fmt.Errorf("%w: stroke-added without stroke", ErrMalformedEvent)
		}
		if err := e.Stroke.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	case EventErase:
		if e.Epicenter == nil || !e.Epicenter.Valid() {
			return fmt.Errorf("%w: erase without valid epicenter", ErrMalformedEvent)
		}
		if e.Radius <= 0 {
			return fmt.Errorf("%w: erase radius must be positive", ErrMalformedEvent)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, e.Type)
	}
	return nil
}

// DecodeEvent parses and validates a wire frame.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
