// Package events defines the notifications a reading session raises for the
// presentation layer, and the sinks that deliver them.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

// Kind names an event.
type Kind string

const (
	ProcessingStarted Kind = "processing_started"
	Progress          Kind = "progress"
	DocumentReady     Kind = "document_ready"
	ProcessingFailed  Kind = "processing_failed"
	WordChanged       Kind = "word_changed"
	ParagraphEnded    Kind = "paragraph_ended"
	DocumentEnded     Kind = "document_ended"
	PlayStateChanged  Kind = "play_state_changed"
	DocumentCleared   Kind = "document_cleared"
)

// Event is a single notification. Only the fields relevant to its Kind are
// set.
type Event struct {
	ID        string             `json:"id"`
	Kind      Kind               `json:"kind"`
	SessionID string             `json:"sessionId,omitempty"`
	Time      time.Time          `json:"time"`
	Percent   int                `json:"percent"`
	Document  *document.Document `json:"document,omitempty"`
	Message   string             `json:"message,omitempty"`
	Current   *document.Word     `json:"current,omitempty"`
	Previous  *document.Word     `json:"previous,omitempty"`
	Next      *document.Word     `json:"next,omitempty"`
	Playing   bool               `json:"playing"`
}

// New returns an event of the given kind stamped with a fresh id and the
// current time.
func New(kind Kind) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Time: time.Now().UTC(),
	}
}

// Sink receives events. Emit must not block for long; it is called from the
// session's event loop.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans an event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
