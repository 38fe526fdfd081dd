package video

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ImageSequence reads a directory of still images as a video, in file name
// order. Frame i has time i/fps.
type ImageSequence struct {
	dir   string
	paths []string
	fps   float64
	next  int
}

// NewImageSequence opens dir. A non-positive fps selects DefaultFPS.
func NewImageSequence(dir string, fps float64) (*ImageSequence, error) {
	paths, err := utils.ListImages(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s: no images found", ErrSourceOpen, dir)
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &ImageSequence{dir: dir, paths: paths, fps: fps}, nil
}

// Len returns the number of frames.
func (s *ImageSequence) Len() int { return len(s.paths) }

// FPS returns the frame rate used for timestamps.
func (s *ImageSequence) FPS() float64 { return s.fps }

func (s *ImageSequence) String() string { return "images:" + s.dir }

// Next loads the next image. An unreadable file yields ErrFrameSkipped.
func (s *ImageSequence) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.paths) {
		return Frame{}, io.EOF
	}
	idx := s.next
	s.next++

	f := Frame{Index: idx, Time: frameTime(idx, s.fps)}
	img, err := utils.LoadImage(s.paths[idx])
	if err != nil {
		return f, fmt.Errorf("%w: %s: %w", ErrFrameSkipped, s.paths[idx], err)
	}
	f.Image, err = utils.AsRGBA(img)
	if err != nil {
		return f, fmt.Errorf("%w: %s: %w", ErrFrameSkipped, s.paths[idx], err)
	}
	return f, nil
}

// Close is a no-op.
func (s *ImageSequence) Close() error { return nil }

// MemorySource serves frames held in memory.
type MemorySource struct {
	frames []image.Image
	times  []float64
	next   int
	closed bool
}

// NewMemorySource creates a source over frames with time i/fps.
func NewMemorySource(frames []image.Image, fps float64) *MemorySource {
	times := make([]float64, len(frames))
	for i := range frames {
		times[i] = frameTime(i, fps)
	}
	return &MemorySource{frames: frames, times: times}
}

// NewTimedMemorySource creates a source with explicit timestamps.
// times must have the same length as frames.
func NewTimedMemorySource(frames []image.Image, times []float64) (*MemorySource, error) {
	if len(frames) != len(times) {
		return nil, fmt.Errorf("%w: %d frames but %d timestamps", ErrSourceOpen, len(frames), len(times))
	}
	return &MemorySource{frames: frames, times: append([]float64(nil), times...)}, nil
}

func (m *MemorySource) String() string { return "memory" }

// Next returns the next frame.
func (m *MemorySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if m.closed || m.next >= len(m.frames) {
		return Frame{}, io.EOF
	}
	idx := m.next
	m.next++
	f := Frame{Index: idx, Time: m.times[idx]}
	rgba, err := utils.AsRGBA(m.frames[idx])
	if err != nil {
		return f, fmt.Errorf("%w: frame %d: %w", ErrFrameSkipped, idx, err)
	}
	f.Image = rgba
	return f, nil
}

// Close marks the source as exhausted.
func (m *MemorySource) Close() error {
	m.closed = true
	return nil
}
