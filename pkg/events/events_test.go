package events

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

type mockPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(subj string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subj)
	m.payloads = append(m.payloads, data)
	return nil
}

func TestNew(t *testing.T) {
	a := New(WordChanged)
	b := New(WordChanged)

	if a.Kind != WordChanged {
		t.Errorf("Kind = %q, want %q", a.Kind, WordChanged)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids should be unique and non-empty, got %q and %q", a.ID, b.ID)
	}
	if a.Time.IsZero() {
		t.Error("Time should be set")
	}
}

func TestEventJSONKeepsZeroPercent(t *testing.T) {
	tests := []struct {
		name    string
		percent int
	}{
		{"zero", 0},
		{"complete", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Progress)
			e.Percent = tt.percent

			data, err := json.Marshal(e)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			got, ok := fields["percent"]
			if !ok {
				t.Fatalf("percent missing from %s", data)
			}
			if got != float64(tt.percent) {
				t.Errorf("percent = %v, want %d", got, tt.percent)
			}
		})
	}
}

func TestMulti(t *testing.T) {
	var first, second []Kind
	sink := Multi(
		SinkFunc(func(e Event) { first = append(first, e.Kind) }),
		nil,
		SinkFunc(func(e Event) { second = append(second, e.Kind) }),
	)

	sink.Emit(New(Progress))
	sink.Emit(New(DocumentReady))

	want := []Kind{Progress, DocumentReady}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("first sink = %v, want %v", first, want)
	}
	if !reflect.DeepEqual(second, want) {
		t.Errorf("second sink = %v, want %v", second, want)
	}

	Discard.Emit(New(Progress))
}

func TestNATSSink(t *testing.T) {
	tests := []struct {
		name        string
		prefix      string
		kind        Kind
		wantSubject string
	}{
		{"default prefix", "", WordChanged, "rsvp.events.word_changed"},
		{"custom prefix", "reader.desk1", DocumentReady, "reader.desk1.document_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			sink := NewNATSSink(pub, tt.prefix, nil)

			e := New(tt.kind)
			e.SessionID = "session-1"
			e.Current = &document.Word{ID: "0", Text: "hello"}
			sink.Emit(e)

			if len(pub.subjects) != 1 {
				t.Fatalf("published %d messages, want 1", len(pub.subjects))
			}
			if pub.subjects[0] != tt.wantSubject {
				t.Errorf("subject = %q, want %q", pub.subjects[0], tt.wantSubject)
			}

			var decoded Event
			if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if decoded.ID != e.ID || decoded.Kind != tt.kind || decoded.SessionID != "session-1" {
				t.Errorf("decoded = %+v, want id %q kind %q", decoded, e.ID, tt.kind)
			}
			if decoded.Current == nil || decoded.Current.Text != "hello" {
				t.Errorf("decoded current = %+v", decoded.Current)
			}
		})
	}
}

func TestNATSSinkPublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats publish error")}
	sink := NewNATSSink(pub, "", nil)

	// must not panic
	sink.Emit(New(Progress))

	if len(pub.subjects) != 0 {
		t.Errorf("published %d messages, want 0", len(pub.subjects))
	}
}
