package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/rsvp/internal/utils"
	"github.com/lehigh-university-libraries/rsvp/pkg/events"
	"github.com/lehigh-university-libraries/rsvp/pkg/playback"
	"github.com/lehigh-university-libraries/rsvp/pkg/session"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

// rateStep is how much + and - change the words per minute.
const rateStep = 50

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Speed read the text in a region of an image",
	Long: `Recognize a region of a screenshot and present it one word at a time.

With --interactive, commands are read from stdin, one per line:
  p       play or pause (an empty line does the same)
  n, b    next or previous paragraph
  r       rewind two lines
  0       back to the first word
  +, -    faster or slower
  q       quit`,
	RunE: runRead,
}

var (
	readSource      sourceFlags
	readWPM         int
	readNATS        string
	readContinue    bool
	readInteractive bool
)

func init() {
	RootCmd.AddCommand(readCmd)

	readSource.register(readCmd)
	readCmd.Flags().IntVar(&readWPM, "wpm", 0, "Words per minute (defaults to wpm in the config)")
	readCmd.Flags().StringVar(&readNATS, "nats", "", "NATS server to publish reading events to (defaults to nats.url in the config)")
	readCmd.Flags().BoolVar(&readContinue, "continue", true, "Keep playing into the next paragraph")
	readCmd.Flags().BoolVarP(&readInteractive, "interactive", "i", false, "Read playback commands from stdin")
}

func runRead(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	img, err := readSource.capturer(cfg, logger)
	if err != nil {
		return err
	}
	selection, err := readSource.selection(img)
	if err != nil {
		return err
	}

	registry := newRegistry(cfg, logger)
	defer closeRecognizers(registry)
	recognizer, err := registry.Get(readSource.engineName(cfg))
	if err != nil {
		return err
	}

	out := newDisplay(cmd.OutOrStdout())
	sinks := []events.Sink{out}

	natsURL := readNATS
	if natsURL == "" {
		natsURL = cfg.NATS.URL
	}
	if natsURL != "" {
		nc, err := events.ConnectNATS(natsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %s", utils.MaskSensitiveData(err.Error()))
		}
		defer nc.Close()
		sinks = append(sinks, events.NewNATSSink(nc, cfg.NATS.SubjectPrefix, logger))
	}

	wpm := readWPM
	if wpm <= 0 {
		wpm = cfg.WPM
	}

	sess, err := session.New(session.Config{
		Capturer:         img,
		Recognizer:       recognizer,
		Extractor:        &structure.Extractor{GapMultiplier: cfg.GapMultiplier, Logger: logger},
		Sink:             events.Multi(sinks...),
		Logger:           logger,
		WPM:              wpm,
		MinSelectionSize: cfg.MinSelectionSize,
	})
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Session loop stopped", "error", err)
		}
	}()

	slog.Info("Reading selection", "session", sess.ID(), "image", img.Path, "engine", recognizer.Name(), "wpm", wpm)

	doc, err := sess.Select(ctx, selection)
	if err != nil {
		return err
	}
	if !doc.HasWords() {
		return nil
	}

	var commands <-chan string
	if readInteractive {
		commands = scanCommands(ctx, cmd.InOrStdin())
	}

	return readLoop(ctx, sess, out.ends, commands, readContinue, cmd.ErrOrStderr())
}

// player is the part of a session the read loop drives.
type player interface {
	Play() (playback.Outcome, error)
	TogglePlay() (playback.Outcome, error)
	NextParagraph() (playback.Outcome, error)
	PreviousParagraph() (playback.Outcome, error)
	RewindTwoLines() (playback.Outcome, error)
	Reset() error
	SetRate(wpm int) (int, error)
	Snapshot() (session.Snapshot, error)
}

// readLoop plays until the document ends or, with commands, until q or the
// end of stdin. Without commands and without autoContinue it stops at the
// first paragraph end.
func readLoop(ctx context.Context, p player, ends <-chan events.Kind, commands <-chan string, autoContinue bool, errOut io.Writer) error {
	interactive := commands != nil
	if _, err := p.Play(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case kind := <-ends:
			if kind == events.DocumentEnded && !interactive {
				return nil
			}
			if kind == events.ParagraphEnded && autoContinue {
				playing, err := playNextParagraph(p)
				if err != nil {
					return err
				}
				if !playing && !interactive {
					return nil
				}
				continue
			}
			if !interactive {
				return nil
			}
		case line, ok := <-commands:
			if !ok {
				return nil
			}
			quit, err := applyCommand(p, line)
			if errors.Is(err, errUnknownCommand) {
				fmt.Fprintln(errOut, err)
				continue
			}
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// playNextParagraph moves forward until a paragraph with words starts
// playing. It reports false when the document runs out first.
func playNextParagraph(p player) (bool, error) {
	for {
		outcome, err := p.NextParagraph()
		if err != nil {
			return false, err
		}
		if outcome != playback.OK {
			return false, nil
		}
		outcome, err = p.Play()
		if err != nil {
			return false, err
		}
		if outcome != playback.NoText {
			return true, nil
		}
	}
}

var errUnknownCommand = errors.New("unknown command")

// applyCommand runs one interactive command and reports whether to quit.
func applyCommand(p player, line string) (bool, error) {
	var err error
	switch cmd := strings.TrimSpace(line); cmd {
	case "", "p":
		_, err = p.TogglePlay()
	case "n":
		_, err = p.NextParagraph()
	case "b":
		_, err = p.PreviousParagraph()
	case "r":
		_, err = p.RewindTwoLines()
	case "0":
		err = p.Reset()
	case "+", "-":
		var snap session.Snapshot
		if snap, err = p.Snapshot(); err != nil {
			return false, err
		}
		step := rateStep
		if cmd == "-" {
			step = -rateStep
		}
		_, err = p.SetRate(snap.WPM + step)
	case "q":
		return true, nil
	default:
		return false, fmt.Errorf("%w %q", errUnknownCommand, cmd)
	}
	return false, err
}

// scanCommands streams stdin lines until EOF or ctx is done.
func scanCommands(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			slog.Warn("Failed to read commands", "error", err)
		}
	}()
	return lines
}
