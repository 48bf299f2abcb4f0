package cmd

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
	"github.com/lehigh-university-libraries/rsvp/pkg/events"
	"github.com/lehigh-university-libraries/rsvp/pkg/playback"
	"github.com/lehigh-university-libraries/rsvp/pkg/session"
)

type mockPlayer struct {
	calls  []string
	wpm    int
	next   playback.Outcome
	failOn string
	// scripted outcomes, consumed in order before falling back to the defaults
	plays []playback.Outcome
	nexts []playback.Outcome
}

func pop(script *[]playback.Outcome, fallback playback.Outcome) playback.Outcome {
	if len(*script) == 0 {
		return fallback
	}
	out := (*script)[0]
	*script = (*script)[1:]
	return out
}

func (m *mockPlayer) record(name string) error {
	m.calls = append(m.calls, name)
	if name == m.failOn {
		return errors.New("loop closed")
	}
	return nil
}

func (m *mockPlayer) Play() (playback.Outcome, error) {
	return pop(&m.plays, playback.OK), m.record("play")
}

func (m *mockPlayer) TogglePlay() (playback.Outcome, error) {
	return playback.OK, m.record("toggle")
}

func (m *mockPlayer) NextParagraph() (playback.Outcome, error) {
	return pop(&m.nexts, m.next), m.record("next")
}

func (m *mockPlayer) PreviousParagraph() (playback.Outcome, error) {
	return playback.OK, m.record("previous")
}

func (m *mockPlayer) RewindTwoLines() (playback.Outcome, error) {
	return playback.OK, m.record("rewind")
}

func (m *mockPlayer) Reset() error {
	return m.record("reset")
}

func (m *mockPlayer) SetRate(wpm int) (int, error) {
	m.wpm = wpm
	return wpm, m.record("rate")
}

func (m *mockPlayer) Snapshot() (session.Snapshot, error) {
	return session.Snapshot{State: playback.State{WPM: 300}}, m.record("snapshot")
}

func TestApplyCommand(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantCalls []string
		wantQuit  bool
		wantWPM   int
	}{
		{"empty line toggles", "", []string{"toggle"}, false, 0},
		{"p toggles", " p ", []string{"toggle"}, false, 0},
		{"next paragraph", "n", []string{"next"}, false, 0},
		{"previous paragraph", "b", []string{"previous"}, false, 0},
		{"rewind", "r", []string{"rewind"}, false, 0},
		{"reset", "0", []string{"reset"}, false, 0},
		{"faster", "+", []string{"snapshot", "rate"}, false, 350},
		{"slower", "-", []string{"snapshot", "rate"}, false, 250},
		{"quit", "q", nil, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPlayer{}
			quit, err := applyCommand(p, tt.line)
			if err != nil {
				t.Fatalf("applyCommand() error = %v", err)
			}
			if quit != tt.wantQuit {
				t.Errorf("quit = %v, want %v", quit, tt.wantQuit)
			}
			if !reflect.DeepEqual(p.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", p.calls, tt.wantCalls)
			}
			if p.wpm != tt.wantWPM {
				t.Errorf("wpm = %d, want %d", p.wpm, tt.wantWPM)
			}
		})
	}
}

func TestApplyCommandErrors(t *testing.T) {
	if _, err := applyCommand(&mockPlayer{}, "x"); !errors.Is(err, errUnknownCommand) {
		t.Errorf("unknown command error = %v, want errUnknownCommand", err)
	}
	if _, err := applyCommand(&mockPlayer{failOn: "toggle"}, "p"); err == nil {
		t.Error("Expected player error to be returned")
	}
}

func runReadLoop(t *testing.T, p *mockPlayer, ends chan events.Kind, commands chan string, autoContinue bool) (string, error) {
	t.Helper()
	var errOut bytes.Buffer
	var cmds <-chan string
	if commands != nil {
		cmds = commands
	}

	done := make(chan error, 1)
	go func() {
		done <- readLoop(context.Background(), p, ends, cmds, autoContinue, &errOut)
	}()

	select {
	case err := <-done:
		return errOut.String(), err
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop did not return")
		return "", nil
	}
}

func TestReadLoopContinuesThroughParagraphs(t *testing.T) {
	ends := make(chan events.Kind, 4)
	ends <- events.ParagraphEnded
	ends <- events.ParagraphEnded
	ends <- events.DocumentEnded

	p := &mockPlayer{next: playback.OK}
	if _, err := runReadLoop(t, p, ends, nil, true); err != nil {
		t.Fatalf("readLoop() error = %v", err)
	}

	want := []string{"play", "next", "play", "next", "play"}
	if !reflect.DeepEqual(p.calls, want) {
		t.Errorf("calls = %v, want %v", p.calls, want)
	}
}

func TestReadLoopSkipsWordlessParagraphs(t *testing.T) {
	tests := []struct {
		name  string
		ends  []events.Kind
		plays []playback.Outcome
		nexts []playback.Outcome
		want  []string
	}{
		{
			name:  "wordless paragraph in the middle",
			ends:  []events.Kind{events.ParagraphEnded, events.DocumentEnded},
			plays: []playback.Outcome{playback.OK, playback.NoText, playback.OK},
			nexts: []playback.Outcome{playback.OK, playback.OK},
			want:  []string{"play", "next", "play", "next", "play"},
		},
		{
			// no further event ever arrives, so readLoop has to return on its own
			name:  "only wordless paragraphs remain",
			ends:  []events.Kind{events.ParagraphEnded},
			plays: []playback.Outcome{playback.OK, playback.NoText},
			nexts: []playback.Outcome{playback.OK, playback.NoMoreParagraphs},
			want:  []string{"play", "next", "play", "next"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ends := make(chan events.Kind, len(tt.ends))
			for _, kind := range tt.ends {
				ends <- kind
			}

			p := &mockPlayer{plays: tt.plays, nexts: tt.nexts}
			if _, err := runReadLoop(t, p, ends, nil, true); err != nil {
				t.Fatalf("readLoop() error = %v", err)
			}
			if !reflect.DeepEqual(p.calls, tt.want) {
				t.Errorf("calls = %v, want %v", p.calls, tt.want)
			}
		})
	}
}

func TestReadLoopStopsAtParagraphEnd(t *testing.T) {
	ends := make(chan events.Kind, 1)
	ends <- events.ParagraphEnded

	p := &mockPlayer{}
	if _, err := runReadLoop(t, p, ends, nil, false); err != nil {
		t.Fatalf("readLoop() error = %v", err)
	}
	if want := []string{"play"}; !reflect.DeepEqual(p.calls, want) {
		t.Errorf("calls = %v, want %v", p.calls, want)
	}
}

func TestReadLoopNoMoreParagraphs(t *testing.T) {
	ends := make(chan events.Kind, 2)
	ends <- events.ParagraphEnded
	ends <- events.DocumentEnded

	p := &mockPlayer{next: playback.NoMoreParagraphs}
	if _, err := runReadLoop(t, p, ends, nil, true); err != nil {
		t.Fatalf("readLoop() error = %v", err)
	}
	if want := []string{"play", "next"}; !reflect.DeepEqual(p.calls, want) {
		t.Errorf("calls = %v, want %v", p.calls, want)
	}
}

func TestReadLoopInteractive(t *testing.T) {
	ends := make(chan events.Kind, 1)
	commands := make(chan string, 4)
	ends <- events.DocumentEnded
	commands <- "0"
	commands <- "zz"
	commands <- "q"

	p := &mockPlayer{}
	errOut, err := runReadLoop(t, p, ends, commands, false)
	if err != nil {
		t.Fatalf("readLoop() error = %v", err)
	}
	if !strings.Contains(errOut, `unknown command "zz"`) {
		t.Errorf("errOut = %q, want unknown command notice", errOut)
	}
	// the document end is not a reason to quit while commands are read
	if p.calls[len(p.calls)-1] != "reset" {
		t.Errorf("calls = %v, want reset last", p.calls)
	}
}

func TestReadLoopCommandsClosed(t *testing.T) {
	commands := make(chan string)
	close(commands)

	p := &mockPlayer{}
	if _, err := runReadLoop(t, p, make(chan events.Kind), commands, true); err != nil {
		t.Fatalf("readLoop() error = %v", err)
	}
}

func TestReadLoopPlayError(t *testing.T) {
	p := &mockPlayer{failOn: "play"}
	if _, err := runReadLoop(t, p, make(chan events.Kind), nil, true); err == nil {
		t.Error("Expected error from Play")
	}
}

func TestScanCommands(t *testing.T) {
	lines := scanCommands(context.Background(), strings.NewReader("p\nn\n\nq\n"))

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	if want := []string{"p", "n", "", "q"}; !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestDisplay(t *testing.T) {
	word := func(text string) *document.Word { return &document.Word{Text: text} }
	doc := &document.Document{Paragraphs: []document.Paragraph{{Lines: []document.Line{{Words: []document.Word{{Text: "a"}, {Text: "b"}}}}}}}

	tests := []struct {
		name     string
		event    events.Event
		want     []string
		wantEnds []events.Kind
	}{
		{"progress", events.Event{Kind: events.Progress, Percent: 40}, []string{"Recognizing... 40%"}, nil},
		{"ready", events.Event{Kind: events.DocumentReady, Document: doc}, []string{"1 paragraphs, 2 words"}, nil},
		{"no text", events.Event{Kind: events.DocumentReady, Document: &document.Document{}}, []string{"No text detected"}, nil},
		{"failure", events.Event{Kind: events.ProcessingFailed, Message: "engine down"}, []string{"Recognition failed: engine down"}, nil},
		{
			name:  "word with neighbours",
			event: events.Event{Kind: events.WordChanged, Previous: word("quick"), Current: word("brown"), Next: word("fox.")},
			want:  []string{"quick", "brown", "fox."},
		},
		{"paragraph end", events.Event{Kind: events.ParagraphEnded}, []string{"End of paragraph"}, []events.Kind{events.ParagraphEnded}},
		{"document end", events.Event{Kind: events.DocumentEnded}, []string{"End of document"}, []events.Kind{events.DocumentEnded}},
		{"paused", events.Event{Kind: events.PlayStateChanged, Playing: false}, []string{"Paused"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			d := newDisplay(&buf)
			d.Emit(tt.event)

			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q missing %q", buf.String(), want)
				}
			}

			var ends []events.Kind
			for len(d.ends) > 0 {
				ends = append(ends, <-d.ends)
			}
			if !reflect.DeepEqual(ends, tt.wantEnds) {
				t.Errorf("ends = %v, want %v", ends, tt.wantEnds)
			}
		})
	}
}

func TestDisplaySignalDoesNotBlock(t *testing.T) {
	d := newDisplay(&bytes.Buffer{})
	for range cap(d.ends) + 5 {
		d.Emit(events.Event{Kind: events.ParagraphEnded})
	}
	if len(d.ends) != cap(d.ends) {
		t.Errorf("ends = %d, want %d", len(d.ends), cap(d.ends))
	}
}
