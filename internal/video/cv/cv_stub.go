//go:build nocv

package cv

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/qrscan/internal/video"
)

var errNoOpenCV = errors.New("built without OpenCV support (nocv tag)")

// Capture is unavailable without OpenCV.
type Capture struct{}

// OpenFile always fails without OpenCV.
func OpenFile(path string) (*Capture, error) {
	return nil, fmt.Errorf("%w: %s: %w", video.ErrSourceOpen, path, errNoOpenCV)
}

// OpenCamera always fails without OpenCV.
func OpenCamera(device int) (*Capture, error) {
	return nil, fmt.Errorf("%w: camera %d: %w", video.ErrSourceOpen, device, errNoOpenCV)
}

func (c *Capture) Next(context.Context) (video.Frame, error) { return video.Frame{}, errNoOpenCV }
func (c *Capture) Close() error                              { return nil }

// Window is a headless display that never requests a stop.
type Window struct{}

// NewWindow returns a headless window.
func NewWindow(string, string) *Window { return &Window{} }

func (w *Window) Show(*image.RGBA) bool { return false }
func (w *Window) Close() error          { return nil }
