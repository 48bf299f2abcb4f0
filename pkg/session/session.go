// Package session ties capture, recognition, structure extraction and
// playback together for one reader.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/rsvp/internal/utils"
	"github.com/lehigh-university-libraries/rsvp/pkg/capture"
	"github.com/lehigh-university-libraries/rsvp/pkg/document"
	"github.com/lehigh-university-libraries/rsvp/pkg/events"
	"github.com/lehigh-university-libraries/rsvp/pkg/playback"
	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

// DefaultMinSelectionSize is the smallest width and height accepted by
// Select, in device-independent pixels.
const DefaultMinSelectionSize = 10

// Config holds a session's collaborators. Capturer and Recognizer are
// required.
type Config struct {
	Capturer   capture.Capturer
	Recognizer recognizers.Recognizer
	Extractor  *structure.Extractor
	Sink       events.Sink
	Logger     *slog.Logger

	// Loop runs playback and event delivery. A new loop is created when nil.
	Loop *playback.Loop
	// Scheduler drives playback timers. Defaults to Loop.
	Scheduler playback.Scheduler

	WPM              int
	MinSelectionSize float64
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	playback.State
	Selection *document.Rectangle `json:"selection,omitempty" yaml:"selection,omitempty"`
	Current   *document.Word      `json:"current,omitempty" yaml:"current,omitempty"`
	Document  *document.Document  `json:"-" yaml:"-"`
}

// Session owns the selection, the current document and the playback
// controller. The controller is only touched on the loop goroutine, so
// callers may use a Session from any goroutine once Run is started.
type Session struct {
	id         string
	loop       *playback.Loop
	controller *playback.Controller
	capturer   capture.Capturer
	recognizer recognizers.Recognizer
	extractor  *structure.Extractor
	sink       events.Sink
	logger     *slog.Logger
	minSize    float64

	mu        sync.Mutex
	selection *document.Rectangle
	busy      bool
}

// New creates a session. Call Run to start delivering work.
func New(cfg Config) (*Session, error) {
	if cfg.Capturer == nil {
		return nil, errors.New("session requires a capturer")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("session requires a recognizer")
	}

	s := &Session{
		id:         uuid.NewString(),
		loop:       cfg.Loop,
		capturer:   cfg.Capturer,
		recognizer: cfg.Recognizer,
		extractor:  cfg.Extractor,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		minSize:    cfg.MinSelectionSize,
	}
	if s.loop == nil {
		s.loop = playback.NewLoop()
	}
	if s.extractor == nil {
		s.extractor = structure.NewExtractor()
	}
	if s.sink == nil {
		s.sink = events.Discard
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.minSize <= 0 {
		s.minSize = DefaultMinSelectionSize
	}
	if s.extractor.Logger == nil {
		s.extractor.Logger = s.logger
	}

	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = s.loop
	}
	opts := []playback.Option{
		playback.WithSink(s.sink),
		playback.WithSessionID(s.id),
		playback.WithLogger(s.logger),
	}
	if cfg.WPM > 0 {
		opts = append(opts, playback.WithRate(cfg.WPM))
	}
	s.controller = playback.New(scheduler, opts...)

	return s, nil
}

// ID returns the session id stamped on every event.
func (s *Session) ID() string {
	return s.id
}

// Run processes playback and events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	return s.loop.Run(ctx)
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

// Select stores a new selection and recognizes it.
func (s *Session) Select(ctx context.Context, region document.Rectangle) (*document.Document, error) {
	if region.Width < s.minSize || region.Height < s.minSize {
		return nil, fmt.Errorf("%w: %.0fx%.0f is under %.0fx%.0f", ErrSelectionTooSmall, region.Width, region.Height, s.minSize, s.minSize)
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.selection = &region
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh captures and recognizes the current selection again. On success
// the new document replaces the old one and its first word is surfaced. On
// failure the previous document stays loaded.
func (s *Session) Refresh(ctx context.Context) (*document.Document, error) {
	s.mu.Lock()
	if s.selection == nil {
		s.mu.Unlock()
		return nil, ErrNoSelection
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	selection := *s.selection
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	start := time.Now()
	s.post(events.New(events.ProcessingStarted))

	progress := &progressTracker{last: -1, emit: func(percent int) {
		e := events.New(events.Progress)
		e.Percent = percent
		s.post(e)
	}}

	image, err := s.capturer.Capture(ctx, selection)
	if err != nil {
		progress.stop()
		return nil, s.fail(&CaptureError{Err: err})
	}

	raw, err := s.recognizer.Recognize(ctx, image, progress.report)
	if err != nil {
		progress.stop()
		return nil, s.fail(&RecognitionError{Engine: s.recognizer.Name(), Err: err})
	}
	progress.finish()

	doc := s.extractor.Extract(raw, selection)

	s.logger.Info("Recognition completed",
		"session", s.id,
		"engine", s.recognizer.Name(),
		"paragraphs", len(doc.Paragraphs),
		"words", doc.WordCount(),
		"confidence", doc.Confidence,
		"duration", time.Since(start),
	)

	err = s.loop.Do(func() {
		e := s.event(events.DocumentReady)
		e.Document = &doc
		s.sink.Emit(e)
		s.controller.Load(&doc)
	})
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Clear drops the selection and the document and stops playback.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()

	return s.loop.Do(func() {
		s.controller.Clear()
		s.sink.Emit(s.event(events.DocumentCleared))
	})
}

// Selection returns the current selection, or nil.
func (s *Session) Selection() *document.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return nil
	}
	r := *s.selection
	return &r
}

// Snapshot returns the playback state and current word.
func (s *Session) Snapshot() (Snapshot, error) {
	snap := Snapshot{Selection: s.Selection()}
	err := s.loop.Do(func() {
		snap.State = s.controller.State()
		snap.Current = s.controller.CurrentWord()
		snap.Document = s.controller.Document()
	})
	return snap, err
}

// Play starts playback.
func (s *Session) Play() (playback.Outcome, error) {
	return s.outcome(s.controller.Play)
}

// Pause stops playback.
func (s *Session) Pause() (playback.Outcome, error) {
	return s.outcome(s.controller.Pause)
}

// TogglePlay pauses when playing and plays otherwise.
func (s *Session) TogglePlay() (playback.Outcome, error) {
	return s.outcome(func() playback.Outcome {
		if s.controller.Playing() {
			return s.controller.Pause()
		}
		return s.controller.Play()
	})
}

// SetRate changes the words per minute and returns the effective rate.
func (s *Session) SetRate(wpm int) (int, error) {
	var rate int
	err := s.loop.Do(func() { rate = s.controller.SetRate(wpm) })
	return rate, err
}

// NextParagraph moves to the next paragraph.
func (s *Session) NextParagraph() (playback.Outcome, error) {
	return s.outcome(s.controller.NextParagraph)
}

// PreviousParagraph moves to the previous paragraph.
func (s *Session) PreviousParagraph() (playback.Outcome, error) {
	return s.outcome(s.controller.PreviousParagraph)
}

// RewindTwoLines moves back two lines.
func (s *Session) RewindTwoLines() (playback.Outcome, error) {
	return s.outcome(s.controller.RewindTwoLines)
}

// Reset moves to the first word of the document.
func (s *Session) Reset() error {
	return s.loop.Do(s.controller.Reset)
}

func (s *Session) outcome(op func() playback.Outcome) (playback.Outcome, error) {
	var out playback.Outcome
	err := s.loop.Do(func() { out = op() })
	return out, err
}

func (s *Session) fail(err error) error {
	s.logger.Error("Recognition failed", "session", s.id, "error", utils.MaskSensitiveError(err))

	e := events.New(events.ProcessingFailed)
	e.Message = utils.MaskSensitiveData(err.Error())
	s.post(e)
	return err
}

func (s *Session) event(kind events.Kind) events.Event {
	e := events.New(kind)
	e.SessionID = s.id
	return e
}

// post delivers e on the loop so every event reaches the sink from one
// goroutine, in order.
func (s *Session) post(e events.Event) {
	e.SessionID = s.id
	if !s.loop.Post(func() { s.sink.Emit(e) }) {
		s.logger.Debug("Dropped event after shutdown", "kind", e.Kind)
	}
}

// progressTracker forwards recognizer progress clamped to 0..100, dropping
// values that would go backwards or arrive after completion.
type progressTracker struct {
	mu   sync.Mutex
	last int
	done bool
	emit func(int)
}

func (p *progressTracker) report(percent int) {
	percent = min(max(percent, 0), 100)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || percent <= p.last {
		return
	}
	p.last = percent
	p.emit(percent)
}

func (p *progressTracker) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done && p.last < 100 {
		p.last = 100
		p.emit(100)
	}
	p.done = true
}

// stop drops any further reports without announcing completion.
func (p *progressTracker) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}
