// Package geometry converts the bounding boxes reported by OCR engines into
// document rectangles.
package geometry

import (
	"math"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

// RawBox is a bounding box as an engine reports it. Engines use either the
// corner form (x0, y0, x1, y1) or the left/top/width/height form, and may
// leave any field out.
type RawBox struct {
	X0 *float64 `json:"x0,omitempty" yaml:"x0,omitempty"`
	Y0 *float64 `json:"y0,omitempty" yaml:"y0,omitempty"`
	X1 *float64 `json:"x1,omitempty" yaml:"x1,omitempty"`
	Y1 *float64 `json:"y1,omitempty" yaml:"y1,omitempty"`

	Left   *float64 `json:"left,omitempty" yaml:"left,omitempty"`
	Top    *float64 `json:"top,omitempty" yaml:"top,omitempty"`
	Width  *float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height *float64 `json:"height,omitempty" yaml:"height,omitempty"`
}

// Corners builds a corner-form box.
func Corners(x0, y0, x1, y1 float64) *RawBox {
	return &RawBox{X0: &x0, Y0: &y0, X1: &x1, Y1: &y1}
}

// Box builds a left/top/width/height box.
func Box(left, top, width, height float64) *RawBox {
	return &RawBox{Left: &left, Top: &top, Width: &width, Height: &height}
}

func (b *RawBox) cornerForm() bool {
	return b.X0 != nil || b.Y0 != nil || b.X1 != nil || b.Y1 != nil
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Normalize converts raw into an absolute rectangle by translating it by the
// origin's position. A nil box yields the zero rectangle.
func Normalize(raw *RawBox, origin document.Rectangle) document.Rectangle {
	if raw == nil {
		return document.Rectangle{}
	}

	var r document.Rectangle
	if raw.cornerForm() {
		x0, y0 := value(raw.X0), value(raw.Y0)
		r = document.Rectangle{
			X:      x0,
			Y:      y0,
			Width:  value(raw.X1) - x0,
			Height: value(raw.Y1) - y0,
		}
	} else {
		r = document.Rectangle{
			X:      value(raw.Left),
			Y:      value(raw.Top),
			Width:  value(raw.Width),
			Height: value(raw.Height),
		}
	}

	r.Width = math.Max(r.Width, 0)
	r.Height = math.Max(r.Height, 0)
	r.X += origin.X
	r.Y += origin.Y

	return r
}

// Union returns the smallest rectangle covering all non-zero rectangles.
// Zero rectangles carry no geometry and are skipped.
func Union(rects ...document.Rectangle) document.Rectangle {
	var out document.Rectangle
	found := false
	for _, r := range rects {
		if r.IsZero() {
			continue
		}
		if !found {
			out = r
			found = true
			continue
		}
		minX := math.Min(out.X, r.X)
		minY := math.Min(out.Y, r.Y)
		maxX := math.Max(out.Right(), r.Right())
		maxY := math.Max(out.Bottom(), r.Bottom())
		out = document.Rectangle{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	}
	return out
}
