package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/lehigh-university-libraries/rsvp/pkg/events"
)

// display renders session events as terminal lines and forwards paragraph
// and document ends to the read loop.
type display struct {
	w    io.Writer
	ends chan events.Kind

	word    lipgloss.Style
	context lipgloss.Style
	status  lipgloss.Style
	failure lipgloss.Style
}

func newDisplay(w io.Writer) *display {
	return &display{
		w:       w,
		ends:    make(chan events.Kind, 8),
		word:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1),
		context: lipgloss.NewStyle().Faint(true),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// Emit runs on the session loop and must not block.
func (d *display) Emit(e events.Event) {
	switch e.Kind {
	case events.ProcessingStarted:
		d.println(d.status.Render("Recognizing..."))
	case events.Progress:
		d.println(d.status.Render(fmt.Sprintf("Recognizing... %d%%", e.Percent)))
	case events.DocumentReady:
		if e.Document == nil || !e.Document.HasWords() {
			d.println(d.status.Render("No text detected"))
			return
		}
		d.println(d.status.Render(fmt.Sprintf("%d paragraphs, %d words", len(e.Document.Paragraphs), e.Document.WordCount())))
	case events.ProcessingFailed:
		d.println(d.failure.Render("Recognition failed: " + e.Message))
	case events.WordChanged:
		if e.Current == nil {
			return
		}
		var previous, next string
		if e.Previous != nil {
			previous = e.Previous.Text
		}
		if e.Next != nil {
			next = e.Next.Text
		}
		d.println(d.context.Render(previous) + d.word.Render(e.Current.Text) + d.context.Render(next))
	case events.ParagraphEnded:
		d.println(d.status.Render("End of paragraph"))
		d.signal(e.Kind)
	case events.DocumentEnded:
		d.println(d.status.Render("End of document"))
		d.signal(e.Kind)
	case events.PlayStateChanged:
		if !e.Playing {
			d.println(d.status.Render("Paused"))
		}
	case events.DocumentCleared:
		d.println(d.status.Render("Cleared"))
	}
}

func (d *display) println(s string) {
	fmt.Fprintln(d.w, s)
}

func (d *display) signal(kind events.Kind) {
	select {
	case d.ends <- kind:
	default:
	}
}
