// Package video defines frame sources for the scanner. Pure-Go sources live
// here; capture devices and container formats are handled by the cv
// subpackage.
package video

import (
	"context"
	"errors"
	"image"
)

// DefaultFPS is used when a source does not report a usable frame rate.
const DefaultFPS = 25.0

var (
	// ErrSourceOpen is returned when a source cannot be opened.
	ErrSourceOpen = errors.New("cannot open video source")

	// ErrFrameRead is returned when a live source fails to deliver a frame.
	// It ends the stream.
	ErrFrameRead = errors.New("cannot read frame")

	// ErrFrameSkipped is returned for a single frame that could not be
	// decoded into an image. The returned Frame carries its Index and Time
	// and the stream continues with the next call to Next.
	ErrFrameSkipped = errors.New("frame skipped")
)

// Frame is a single decoded frame with its position in the stream.
type Frame struct {
	Index int
	Time  float64 // seconds
	Image *image.RGBA
}

// Source delivers frames in order. Next returns io.EOF after the last frame.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

func frameTime(index int, fps float64) float64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return float64(index) / fps
}
