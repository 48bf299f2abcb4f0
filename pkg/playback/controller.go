// Package playback walks a document one word at a time.
package playback

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
	"github.com/lehigh-university-libraries/rsvp/pkg/events"
)

const (
	MinWPM     = 100
	MaxWPM     = 600
	DefaultWPM = 300

	// sentencePause multiplies the delay of a word that ends a sentence.
	sentencePause = 5
)

// Outcome describes what an operation did. Operations that could not act
// report why instead of failing.
type Outcome int

const (
	OK Outcome = iota
	NoText
	AlreadyPlaying
	NotPlaying
	ParagraphEnd
	DocumentEnd
	NoMoreParagraphs
	NoEarlierParagraph
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NoText:
		return "no text to read"
	case AlreadyPlaying:
		return "already playing"
	case NotPlaying:
		return "not playing"
	case ParagraphEnd:
		return "no more words in this paragraph"
	case DocumentEnd:
		return "end of document"
	case NoMoreParagraphs:
		return "no more paragraphs"
	case NoEarlierParagraph:
		return "no earlier paragraph"
	default:
		return "unknown"
	}
}

// Cursor addresses a word in a document.
type Cursor struct {
	Paragraph int `json:"paragraph" yaml:"paragraph"`
	Line      int `json:"line" yaml:"line"`
	Word      int `json:"word" yaml:"word"`
}

// State is a snapshot of the controller.
type State struct {
	Cursor     Cursor `json:"cursor" yaml:"cursor"`
	Playing    bool   `json:"playing" yaml:"playing"`
	WPM        int    `json:"wpm" yaml:"wpm"`
	Paragraphs int    `json:"paragraphs" yaml:"paragraphs"`
}

// Controller owns the cursor over a document and drives timed playback.
// It is not safe for concurrent use; run it on a Loop.
type Controller struct {
	doc     *document.Document
	cursor  Cursor
	playing bool
	wpm     int

	scheduler  Scheduler
	timer      Timer
	generation uint64

	sink      events.Sink
	sessionID string
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets where word and play state events go.
func WithSink(sink events.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithSessionID stamps emitted events with id.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRate sets the initial words per minute, clamped to [MinWPM, MaxWPM].
func WithRate(wpm int) Option {
	return func(c *Controller) { c.wpm = clampRate(wpm) }
}

// New returns a stopped controller with no document.
func New(scheduler Scheduler, opts ...Option) *Controller {
	c := &Controller{
		wpm:       DefaultWPM,
		scheduler: scheduler,
		sink:      events.Discard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func clampRate(wpm int) int {
	return min(max(wpm, MinWPM), MaxWPM)
}

// Load replaces the document, stopping playback and moving the cursor to the
// first word, which is surfaced.
func (c *Controller) Load(doc *document.Document) {
	c.stop()
	c.doc = doc
	c.cursor = c.start(0)
	c.surface()
}

// Clear stops playback and drops the document.
func (c *Controller) Clear() {
	c.stop()
	c.doc = nil
	c.cursor = Cursor{}
}

// Document returns the loaded document, or nil.
func (c *Controller) Document() *document.Document {
	return c.doc
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	s := State{Cursor: c.cursor, Playing: c.playing, WPM: c.wpm}
	if c.doc != nil {
		s.Paragraphs = len(c.doc.Paragraphs)
	}
	return s
}

// Playing reports whether a playback loop is running.
func (c *Controller) Playing() bool {
	return c.playing
}

// Rate returns the current words per minute.
func (c *Controller) Rate() int {
	return c.wpm
}

// CurrentWord returns the word at the cursor, or nil.
func (c *Controller) CurrentWord() *document.Word {
	return c.doc.WordAt(c.cursor.Paragraph, c.cursor.Line, c.cursor.Word)
}

// PreviousWord returns the word before the cursor within the same paragraph,
// or nil.
func (c *Controller) PreviousWord() *document.Word {
	if c.CurrentWord() == nil {
		return nil
	}
	if c.cursor.Word > 0 {
		return c.doc.WordAt(c.cursor.Paragraph, c.cursor.Line, c.cursor.Word-1)
	}
	lines := c.doc.Paragraphs[c.cursor.Paragraph].Lines
	for l := c.cursor.Line - 1; l >= 0; l-- {
		if n := len(lines[l].Words); n > 0 {
			return c.doc.WordAt(c.cursor.Paragraph, l, n-1)
		}
	}
	return nil
}

// NextWord returns the word after the cursor within the same paragraph, or
// nil at the end of the paragraph.
func (c *Controller) NextWord() *document.Word {
	if c.CurrentWord() == nil {
		return nil
	}
	if w := c.doc.WordAt(c.cursor.Paragraph, c.cursor.Line, c.cursor.Word+1); w != nil {
		return w
	}
	lines := c.doc.Paragraphs[c.cursor.Paragraph].Lines
	for l := c.cursor.Line + 1; l < len(lines); l++ {
		if len(lines[l].Words) > 0 {
			return c.doc.WordAt(c.cursor.Paragraph, l, 0)
		}
	}
	return nil
}

// Advance moves the cursor one word forward within the paragraph, skipping
// lines without words. At the end of the paragraph it stops playback, pins
// the cursor to the last word and returns false.
func (c *Controller) Advance() bool {
	if c.CurrentWord() == nil {
		c.stop()
		return false
	}

	lines := c.doc.Paragraphs[c.cursor.Paragraph].Lines
	if c.cursor.Word+1 < len(lines[c.cursor.Line].Words) {
		c.cursor.Word++
		return true
	}
	for l := c.cursor.Line + 1; l < len(lines); l++ {
		if len(lines[l].Words) > 0 {
			c.cursor.Line = l
			c.cursor.Word = 0
			return true
		}
	}

	c.stop()
	c.cursor = c.last(c.cursor.Paragraph)

	kind := events.ParagraphEnded
	if c.cursor.Paragraph == len(c.doc.Paragraphs)-1 {
		kind = events.DocumentEnded
	}
	c.emit(c.event(kind))
	c.logger.Debug("Reached end of paragraph", "paragraph", c.cursor.Paragraph, "event", kind)
	return false
}

// WordDelay returns how long word stays on screen at the current rate.
func (c *Controller) WordDelay(word document.Word) time.Duration {
	delay := time.Minute / time.Duration(c.wpm)
	if endsSentence(word.Text) {
		delay *= sentencePause
	}
	return delay
}

func endsSentence(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(strings.TrimSpace(text))
	return strings.ContainsRune(".?!…", r)
}

// Play starts timed playback from the cursor. When the cursor sits on the
// last word of its paragraph, playback restarts from the paragraph's first
// word.
func (c *Controller) Play() Outcome {
	if c.playing {
		return AlreadyPlaying
	}
	if !c.doc.HasWords() {
		return NoText
	}
	if c.cursor == c.last(c.cursor.Paragraph) {
		c.cursor = c.start(c.cursor.Paragraph)
	}
	if c.CurrentWord() == nil {
		return NoText
	}

	c.playing = true
	c.emitPlayState()
	c.surface()
	c.schedule()
	return OK
}

// Pause stops timed playback.
func (c *Controller) Pause() Outcome {
	if !c.playing {
		return NotPlaying
	}
	c.stop()
	return OK
}

// SetRate changes the words per minute, clamped to [MinWPM, MaxWPM], and
// returns the effective rate. A running loop is rescheduled from the current
// word at the new rate.
func (c *Controller) SetRate(wpm int) int {
	c.wpm = clampRate(wpm)
	if c.playing {
		c.schedule()
	}
	return c.wpm
}

// NextParagraph stops playback and moves to the first word of the next
// paragraph.
func (c *Controller) NextParagraph() Outcome {
	c.stop()
	if c.doc == nil || len(c.doc.Paragraphs) == 0 {
		return NoText
	}
	if c.cursor.Paragraph+1 >= len(c.doc.Paragraphs) {
		return NoMoreParagraphs
	}
	c.cursor = c.start(c.cursor.Paragraph + 1)
	c.surface()
	return OK
}

// PreviousParagraph stops playback and moves to the first word of the
// previous paragraph. At the first paragraph it does nothing.
func (c *Controller) PreviousParagraph() Outcome {
	c.stop()
	if c.doc == nil || len(c.doc.Paragraphs) == 0 {
		return NoText
	}
	if c.cursor.Paragraph == 0 {
		return NoEarlierParagraph
	}
	c.cursor = c.start(c.cursor.Paragraph - 1)
	c.surface()
	return OK
}

// RewindTwoLines stops playback and moves back up to two lines within the
// paragraph, to the first word of that line.
func (c *Controller) RewindTwoLines() Outcome {
	c.stop()
	if c.doc == nil || len(c.doc.Paragraphs) == 0 {
		return NoText
	}

	lines := c.doc.Paragraphs[c.cursor.Paragraph].Lines
	target := max(c.cursor.Line-2, 0)
	for l := target; l < len(lines); l++ {
		if len(lines[l].Words) > 0 {
			target = l
			break
		}
	}
	c.cursor = Cursor{Paragraph: c.cursor.Paragraph, Line: target}
	c.surface()
	return OK
}

// Reset moves the cursor to the start of the document without touching the
// play state.
func (c *Controller) Reset() {
	c.cursor = c.start(0)
	c.surface()
}

// surface emits the current word with its neighbours. It does nothing when
// there is no current word.
func (c *Controller) surface() {
	current := c.CurrentWord()
	if current == nil {
		return
	}
	e := c.event(events.WordChanged)
	e.Current = current
	e.Previous = c.PreviousWord()
	e.Next = c.NextWord()
	c.emit(e)
}

// start returns the cursor of the first word of paragraph p, or the start of
// the paragraph when it has none.
func (c *Controller) start(p int) Cursor {
	if c.doc == nil || p < 0 || p >= len(c.doc.Paragraphs) {
		return Cursor{Paragraph: max(p, 0)}
	}
	for l, line := range c.doc.Paragraphs[p].Lines {
		if len(line.Words) > 0 {
			return Cursor{Paragraph: p, Line: l}
		}
	}
	return Cursor{Paragraph: p}
}

// last returns the cursor of the last word of paragraph p.
func (c *Controller) last(p int) Cursor {
	if c.doc == nil || p < 0 || p >= len(c.doc.Paragraphs) {
		return c.start(p)
	}
	lines := c.doc.Paragraphs[p].Lines
	for l := len(lines) - 1; l >= 0; l-- {
		if n := len(lines[l].Words); n > 0 {
			return Cursor{Paragraph: p, Line: l, Word: n - 1}
		}
	}
	return c.start(p)
}

// schedule replaces any pending timer with one for the current word.
func (c *Controller) schedule() {
	c.cancel()
	word := c.CurrentWord()
	if word == nil {
		return
	}
	gen := c.generation
	c.timer = c.scheduler.AfterFunc(c.WordDelay(*word), func() {
		c.tick(gen)
	})
}

func (c *Controller) tick(gen uint64) {
	// a timer that lost the race with Stop still delivers; drop it
	if gen != c.generation || !c.playing {
		return
	}
	c.timer = nil
	if c.Advance() {
		c.surface()
		c.schedule()
	}
}

func (c *Controller) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
}

func (c *Controller) stop() {
	c.cancel()
	if c.playing {
		c.playing = false
		c.emitPlayState()
	}
}

func (c *Controller) emitPlayState() {
	e := c.event(events.PlayStateChanged)
	e.Playing = c.playing
	c.emit(e)
}

func (c *Controller) event(kind events.Kind) events.Event {
	e := events.New(kind)
	e.SessionID = c.sessionID
	e.Playing = c.playing
	return e
}

func (c *Controller) emit(e events.Event) {
	c.sink.Emit(e)
}
