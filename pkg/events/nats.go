package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsConnectTimeout = 10 * time.Second
	natsMaxReconnects  = 5

	// DefaultSubjectPrefix is prepended to the event kind to build the
	// subject an event is published on.
	DefaultSubjectPrefix = "rsvp.events"
)

// Publisher is the part of a NATS connection the sink needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSSink publishes every event as JSON on "<prefix>.<kind>".
type NATSSink struct {
	publisher Publisher
	prefix    string
	logger    *slog.Logger
}

// NewNATSSink wraps publisher. An empty prefix uses DefaultSubjectPrefix.
func NewNATSSink(publisher Publisher, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{publisher: publisher, prefix: prefix, logger: logger}
}

// Subject returns the subject events of kind are published on.
func (s *NATSSink) Subject(kind Kind) string {
	return s.prefix + "." + string(kind)
}

// Emit publishes e. Failures are logged and otherwise ignored so a broker
// outage never stalls playback.
func (s *NATSSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("Failed to marshal event", "kind", e.Kind, "error", err)
		return
	}

	subject := s.Subject(e.Kind)
	if err := s.publisher.Publish(subject, data); err != nil {
		s.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// ConnectNATS dials the server at url.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("rsvp"),
		nats.Timeout(natsConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(natsMaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
