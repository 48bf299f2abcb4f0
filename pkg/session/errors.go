package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSelectionTooSmall is returned for selections under the minimum size.
	ErrSelectionTooSmall = errors.New("selection too small")
	// ErrNoSelection is returned when refreshing before anything is selected.
	ErrNoSelection = errors.New("no selection")
	// ErrBusy is returned when a recognition run is already in flight.
	ErrBusy = errors.New("recognition already in progress")
)

// CaptureError wraps a failure to produce an image for the selection.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// RecognitionError wraps an OCR engine failure.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition failed: %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
