// Package capture produces cropped raster images for a selected region.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

var (
	// ErrNoSource means there is no image to capture from.
	ErrNoSource = errors.New("no capturable source")
	// ErrOutOfBounds means the region lies outside the source image.
	ErrOutOfBounds = errors.New("capture region out of bounds")
)

// Capturer returns PNG bytes for a region given in device-independent
// pixels.
type Capturer interface {
	Capture(ctx context.Context, region document.Rectangle) ([]byte, error)
}

// ImageFile captures from a screenshot on disk. ScaleFactor is the ratio of
// physical to device-independent pixels; zero means 1.
type ImageFile struct {
	Path        string
	ScaleFactor float64
	Logger      *slog.Logger
}

func (f *ImageFile) scale() float64 {
	if f.ScaleFactor <= 0 {
		return 1
	}
	return f.ScaleFactor
}

// Bounds returns the size of the source in device-independent pixels.
func (f *ImageFile) Bounds() (document.Rectangle, error) {
	img, err := f.load()
	if err != nil {
		return document.Rectangle{}, err
	}
	b := img.Bounds()
	s := f.scale()
	return document.Rectangle{
		Width:  float64(b.Dx()) / s,
		Height: float64(b.Dy()) / s,
	}, nil
}

// Capture crops region out of the screenshot. When ScaleFactor is not 1
// the crop is resampled back to device-independent pixels.
func (f *ImageFile) Capture(ctx context.Context, region document.Rectangle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := f.load()
	if err != nil {
		return nil, err
	}

	s := f.scale()
	crop := image.Rect(
		int(math.Round(region.X*s)),
		int(math.Round(region.Y*s)),
		int(math.Round(region.Right()*s)),
		int(math.Round(region.Bottom()*s)),
	).Add(img.Bounds().Min)

	if crop.Empty() || !crop.In(img.Bounds()) {
		return nil, fmt.Errorf("%w: %v not within %v", ErrOutOfBounds, crop, img.Bounds())
	}

	target := image.Rect(0, 0, crop.Dx(), crop.Dy())
	if s != 1 {
		target = image.Rect(0, 0,
			max(int(math.Round(region.Width)), 1),
			max(int(math.Round(region.Height)), 1),
		)
	}

	out := image.NewRGBA(target)
	if s == 1 {
		draw.Draw(out, target, img, crop.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(out, target, img, crop, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}

	f.logger().Debug("Captured region",
		"path", f.Path,
		"region", fmt.Sprintf("%.0fx%.0f+%.0f+%.0f", region.Width, region.Height, region.X, region.Y),
		"scale_factor", s,
		"bytes", buf.Len(),
	)

	return buf.Bytes(), nil
}

func (f *ImageFile) load() (image.Image, error) {
	if f.Path == "" {
		return nil, ErrNoSource
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSource, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrNoSource, f.Path, err)
	}
	return img, nil
}

func (f *ImageFile) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
