package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/rsvp/internal/config"
	"github.com/lehigh-university-libraries/rsvp/pkg/capture"
	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

// sourceFlags selects an image and a region of it. Used by extract and read.
type sourceFlags struct {
	image  string
	scale  float64
	engine string
	region document.Rectangle
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.image, "image", "", "Screenshot to read from (defaults to capture.path in the config)")
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "Physical pixels per device-independent pixel (defaults to capture.scale_factor)")
	cmd.Flags().StringVar(&f.engine, "engine", "", "OCR engine to use (defaults to engine in the config)")
	cmd.Flags().Float64Var(&f.region.X, "x", 0, "Left edge of the selection")
	cmd.Flags().Float64Var(&f.region.Y, "y", 0, "Top edge of the selection")
	cmd.Flags().Float64Var(&f.region.Width, "width", 0, "Selection width (0 means to the right edge)")
	cmd.Flags().Float64Var(&f.region.Height, "height", 0, "Selection height (0 means to the bottom edge)")
}

// capturer builds the image capturer, command line flags winning over c.
func (f *sourceFlags) capturer(c *config.Config, logger *slog.Logger) (*capture.ImageFile, error) {
	path := f.image
	if path == "" {
		path = c.Capture.Path
	}
	if path == "" {
		return nil, errors.New("no image given: pass --image or set capture.path")
	}
	scale := f.scale
	if scale <= 0 {
		scale = c.Capture.ScaleFactor
	}
	return &capture.ImageFile{Path: path, ScaleFactor: scale, Logger: logger}, nil
}

func (f *sourceFlags) engineName(c *config.Config) string {
	if f.engine != "" {
		return f.engine
	}
	return c.Engine
}

// selection fills a zero width or height with the rest of the image.
func (f *sourceFlags) selection(img *capture.ImageFile) (document.Rectangle, error) {
	region := f.region
	if region.Width > 0 && region.Height > 0 {
		return region, nil
	}
	bounds, err := img.Bounds()
	if err != nil {
		return document.Rectangle{}, err
	}
	if region.Width <= 0 {
		region.Width = max(bounds.Width-region.X, 0)
	}
	if region.Height <= 0 {
		region.Height = max(bounds.Height-region.Y, 0)
	}
	return region, nil
}
