package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/video"
)

// Display shows annotated frames. Show returns true when the user asked to stop.
type Display interface {
	Show(frame *image.RGBA) (stop bool)
}

// DisplayFunc adapts a function to the Display interface.
type DisplayFunc func(frame *image.RGBA) bool

func (f DisplayFunc) Show(frame *image.RGBA) bool { return f(frame) }

// StopReason tells why a run ended.
type StopReason string

const (
	StopEndOfStream StopReason = "end_of_stream"
	StopCancelled   StopReason = "cancelled"
	StopRequested   StopReason = "stop_requested"
	StopError       StopReason = "error"
)

// Summary describes a finished run.
type Summary struct {
	Frames                  int                             `json:"frames"`
	FramesWithoutDetections int                             `json:"frames_without_detections"`
	SkippedFrames           int                             `json:"skipped_frames"`
	DecodeFailures          int                             `json:"decode_failures"`
	PayloadErrors           int                             `json:"payload_errors"`
	Detections              int                             `json:"detections"`
	Duration                time.Duration                   `json:"duration"`
	Reason                  StopReason                      `json:"reason"`
	Methods                 map[string]common.DurationStats `json:"methods,omitempty"`
}

// Runner drives a Processor over a video.Source.
type Runner struct {
	proc *Processor
}

// NewRunner creates a runner around p. Detections accumulate in p.Store() and
// events go to p.Observer().
func NewRunner(p *Processor) *Runner {
	return &Runner{proc: p}
}

// Processor returns the wrapped processor.
func (r *Runner) Processor() *Processor { return r.proc }

// Run pulls frames until the source returns io.EOF, ctx is cancelled or the
// display requests a stop. All of these end the run normally. A frame the
// source reports as video.ErrFrameSkipped is counted as a decode failure and
// the run continues. Any other read error ends the run and is returned. The
// source is not closed.
func (r *Runner) Run(ctx context.Context, src video.Source, display Display) (Summary, error) {
	obs := r.proc.Observer()
	timer := common.NewNamedTimer("run")
	base := r.proc.Stats()

	obs.OnRunStart(RunInfo{
		Source:     sourceName(src),
		Methods:    r.proc.MethodNames(),
		ZoomFactor: r.proc.Config().ZoomFactor,
	})

	var s Summary
	finish := func(reason StopReason, err error) (Summary, error) {
		st := r.proc.Stats()
		s.DecodeFailures = st.DecodeFailures - base.DecodeFailures + s.SkippedFrames
		s.PayloadErrors = st.PayloadErrors - base.PayloadErrors
		s.Methods = st.Methods
		s.Detections = r.proc.Store().Len()
		s.Reason = reason
		s.Duration = timer.Stop()
		obs.OnRunComplete(s)
		return s, err
	}

	for {
		if ctx.Err() != nil {
			return finish(StopCancelled, nil)
		}

		frame, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return finish(StopEndOfStream, nil)
			case errors.Is(err, video.ErrFrameSkipped):
				s.Frames++
				s.SkippedFrames++
				s.FramesWithoutDetections++
				obs.OnDecodeFailure(frame.Time, "", fmt.Errorf("%w: %w", ErrDecodeFailure, err))
				continue
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				return finish(StopCancelled, nil)
			default:
				return finish(StopError, fmt.Errorf("frame %d: %w", s.Frames, err))
			}
		}

		obs.OnFrameStart(frame.Index, frame.Time)
		annotated, found := r.proc.Process(ctx, frame.Image, frame.Time)
		s.Frames++
		if !found {
			s.FramesWithoutDetections++
		}
		obs.OnFrameDone(frame.Index, frame.Time, found)

		if display != nil && annotated != nil && display.Show(annotated) {
			return finish(StopRequested, nil)
		}
	}
}

func sourceName(src video.Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
