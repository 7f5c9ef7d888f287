package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind tags the payload carried by an Event.
type EventKind string

const (
	EventBands EventKind = "bands"
	EventTop   EventKind = "top"
)

// Event is the envelope the engine emits for every output it produces.
type Event struct {
	ID        string      `json:"id"`
	Kind      EventKind   `json:"kind"`
	Stream    string      `json:"stream"`
	Bands     *BandUpdate `json:"bands,omitempty"`
	Top       *TopLevels  `json:"top,omitempty"`
	EmittedAt time.Time   `json:"emitted_at"`
}

// NewBandEvent wraps a band update for stream.
func NewBandEvent(stream StreamKey, u BandUpdate) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      EventBands,
		Stream:    stream.Key(),
		Bands:     &u,
		EmittedAt: time.Now().UTC(),
	}
}

// NewTopEvent wraps a top-N selection for stream.
func NewTopEvent(stream StreamKey, t TopLevels) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      EventTop,
		Stream:    stream.Key(),
		Top:       &t,
		EmittedAt: time.Now().UTC(),
	}
}

// Channel returns the bus channel the event is published on:
// "ch:<kind>:<venue>:<symbol>".
func (e Event) Channel() string {
	k, err := ParseStreamKey(e.Stream)
	if err != nil {
		return "ch:" + string(e.Kind) + ":" + e.Stream
	}
	return "ch:" + string(e.Kind) + ":" + k.Market()
}

// Sink consumes engine output. Emit is called from the goroutine that owns
// the stream, so implementations shared between streams must be safe for
// concurrent use.
type Sink interface {
	Emit(ctx context.Context, evt Event) error
}
