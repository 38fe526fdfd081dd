//go:build !nocv

// Package cv provides OpenCV-backed frame sources and the preview window.
// It requires cgo and an OpenCV installation; build with -tags nocv for a
// binary without capture support.
package cv

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/MeKo-Tech/qrscan/internal/video"
	"gocv.io/x/gocv"
)

type clock int

const (
	clockFrames clock = iota // position in frames divided by fps
	clockMsec                // device position in milliseconds
)

// Capture reads frames from a gocv.VideoCapture.
type Capture struct {
	vc    *gocv.VideoCapture
	mat   gocv.Mat
	name  string
	fps   float64
	clock clock
	live  bool
	index int
}

// OpenFile opens a video file. Frame time is position in frames divided by
// the container's frame rate, falling back to video.DefaultFPS.
func OpenFile(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", video.ErrSourceOpen, path, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", video.ErrSourceOpen, path)
	}
	fps := vc.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = video.DefaultFPS
	}
	return &Capture{vc: vc, mat: gocv.NewMat(), name: "file:" + path, fps: fps, clock: clockFrames}, nil
}

// OpenCamera opens a capture device by index. Frame time is the device's
// position in milliseconds divided by 1000.
func OpenCamera(device int) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %w", video.ErrSourceOpen, device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: camera %d", video.ErrSourceOpen, device)
	}
	return &Capture{
		vc:    vc,
		mat:   gocv.NewMat(),
		name:  fmt.Sprintf("camera:%d", device),
		fps:   vc.Get(gocv.VideoCaptureFPS),
		clock: clockMsec,
		live:  true,
	}, nil
}

func (c *Capture) String() string { return c.name }

// FPS returns the frame rate reported by the capture.
func (c *Capture) FPS() float64 { return c.fps }

// Next reads the next frame. Files report io.EOF at the end; cameras report
// video.ErrFrameRead when the device stops delivering. A frame that was read
// but cannot be converted yields video.ErrFrameSkipped.
func (c *Capture) Next(ctx context.Context) (video.Frame, error) {
	if err := ctx.Err(); err != nil {
		return video.Frame{}, err
	}

	// Position is sampled before the read so the first frame is at 0.
	var ts float64
	if c.clock == clockFrames {
		ts = c.vc.Get(gocv.VideoCapturePosFrames) / c.fps
	}

	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		if c.live {
			return video.Frame{}, fmt.Errorf("%w: %s", video.ErrFrameRead, c.name)
		}
		return video.Frame{}, io.EOF
	}
	if c.clock == clockMsec {
		ts = c.vc.Get(gocv.VideoCapturePosMsec) / 1000
	}

	f := video.Frame{Index: c.index, Time: ts}
	c.index++

	img, err := c.mat.ToImage()
	if err != nil {
		return f, fmt.Errorf("%w: %s: frame %d: %w", video.ErrFrameSkipped, c.name, f.Index, err)
	}
	f.Image, err = utils.AsRGBA(img)
	if err != nil {
		return f, fmt.Errorf("%w: %s: frame %d: %w", video.ErrFrameSkipped, c.name, f.Index, err)
	}
	return f, nil
}

// Close releases the capture.
func (c *Capture) Close() error {
	if err := c.mat.Close(); err != nil {
		return err
	}
	return c.vc.Close()
}

// Window shows annotated frames and reports the stop key.
type Window struct {
	w       *gocv.Window
	stopKey int
}

// NewWindow opens a preview window. stopKey is a single character; an empty
// string disables the key check.
func NewWindow(title, stopKey string) *Window {
	return &Window{w: gocv.NewWindow(title), stopKey: keyCode(stopKey)}
}

// Show displays frame and reports whether the stop key was pressed or the
// window was closed.
func (w *Window) Show(frame *image.RGBA) bool {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return false
	}
	defer mat.Close()

	w.w.IMShow(mat)
	key := w.w.WaitKey(1)
	if w.stopKey >= 0 && key >= 0 && key&0xFF == w.stopKey {
		return true
	}
	return !w.w.IsOpen()
}

// Close destroys the window.
func (w *Window) Close() error { return w.w.Close() }

func keyCode(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(s)
	return int(r)
}
