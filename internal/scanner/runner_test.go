package scanner

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/transform"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/MeKo-Tech/qrscan/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource returns frames and then a fixed error.
type scriptedSource struct {
	frames []image.Image
	err    error
	next   int
	closed bool
}

func (s *scriptedSource) Next(context.Context) (video.Frame, error) {
	if s.next >= len(s.frames) {
		return video.Frame{}, s.err
	}
	i := s.next
	s.next++
	rgba, _ := utils.AsRGBA(s.frames[i])
	return video.Frame{Index: i, Time: float64(i), Image: rgba}, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func threeFrames() []image.Image {
	return []image.Image{whiteFrame(20, 20), whiteFrame(20, 20), whiteFrame(20, 20)}
}

func TestRun_EndToEndHello(t *testing.T) {
	obs := &recordingObserver{}
	p, err := NewBuilder().
		WithZoomFactor(2).
		WithMethods(transform.Identity).
		WithDecoder(fixedDecoder(helloRaw)).
		WithObserver(obs).
		Build()
	require.NoError(t, err)

	src, err := video.NewTimedMemorySource(threeFrames(), []float64{0, 1, 2})
	require.NoError(t, err)

	summary, err := NewRunner(p).Run(context.Background(), src, nil)
	require.NoError(t, err)

	report := p.Store().Report()
	require.Len(t, report, 1)
	assert.Equal(t, Detection{
		Time:        0,
		Data:        "HELLO",
		Method:      "identity",
		Coordinates: utils.Polygon{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}, {X: 0, Y: 5}},
	}, report[0])

	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, 0, summary.FramesWithoutDetections)
	assert.Equal(t, 1, summary.Detections)
	assert.Equal(t, StopEndOfStream, summary.Reason)

	assert.Equal(t, "run_start", obs.kinds()[0])
	assert.Equal(t, "run_complete", obs.kinds()[len(obs.events)-1])
	assert.Equal(t, 3, obs.count("frame_start"))
	assert.Equal(t, 3, obs.count("frame_done"))
	assert.Equal(t, []string{"identity"}, obs.info.Methods)
	assert.Equal(t, "memory", obs.info.Source)
	assert.Equal(t, summary, obs.summary)
}

func TestRun_DisplayReceivesAnnotatedFrames(t *testing.T) {
	p, err := NewBuilder().WithDecoder(fixedDecoder(helloRaw)).Build()
	require.NoError(t, err)

	var shown []*image.RGBA
	display := DisplayFunc(func(f *image.RGBA) bool {
		shown = append(shown, f)
		return false
	})
	_, err = NewRunner(p).Run(context.Background(), video.NewMemorySource(threeFrames(), 25), display)
	require.NoError(t, err)
	require.Len(t, shown, 3)
	for _, f := range shown {
		assert.Equal(t, green, f.RGBAAt(0, 0))
	}
}

func TestRun_StopRequestedByDisplay(t *testing.T) {
	p, err := NewBuilder().WithDecoder(fixedDecoder()).Build()
	require.NoError(t, err)

	calls := 0
	display := DisplayFunc(func(*image.RGBA) bool {
		calls++
		return calls == 2
	})
	summary, err := NewRunner(p).Run(context.Background(), video.NewMemorySource(threeFrames(), 25), display)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, 2, summary.FramesWithoutDetections)
	assert.Equal(t, StopRequested, summary.Reason)
}

func TestRun_CancelledContext(t *testing.T) {
	p, err := NewBuilder().WithDecoder(fixedDecoder(helloRaw)).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	display := DisplayFunc(func(*image.RGBA) bool {
		cancel()
		return false
	})
	summary, err := NewRunner(p).Run(ctx, video.NewMemorySource(threeFrames(), 25), display)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Frames, "cancellation is polled once per frame")
	assert.Equal(t, StopCancelled, summary.Reason)
	assert.Equal(t, 1, summary.Detections)
}

func TestRun_FrameReadErrorIsFatal(t *testing.T) {
	obs := &recordingObserver{}
	p, err := NewBuilder().WithDecoder(fixedDecoder(helloRaw)).WithObserver(obs).Build()
	require.NoError(t, err)

	src := &scriptedSource{
		frames: threeFrames()[:2],
		err:    errors.Join(video.ErrFrameRead, errors.New("device unplugged")),
	}
	summary, err := NewRunner(p).Run(context.Background(), src, nil)
	require.ErrorIs(t, err, video.ErrFrameRead)
	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, StopError, summary.Reason)
	assert.Equal(t, 1, summary.Detections, "detections before the failure are kept")
	assert.Equal(t, 1, obs.count("run_complete"))
	assert.False(t, src.closed, "the caller owns the source")
}

func TestRun_SkipsUnreadableFrame(t *testing.T) {
	obs := &recordingObserver{}
	p, err := NewBuilder().WithDecoder(fixedDecoder(helloRaw)).WithObserver(obs).Build()
	require.NoError(t, err)

	// The nil middle frame cannot be converted, like a corrupt file on disk.
	frames := []image.Image{whiteFrame(20, 20), nil, whiteFrame(20, 20)}
	src, err := video.NewTimedMemorySource(frames, []float64{0, 0.5, 1})
	require.NoError(t, err)

	summary, err := NewRunner(p).Run(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, StopEndOfStream, summary.Reason)
	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, 1, summary.SkippedFrames)
	assert.Equal(t, 1, summary.FramesWithoutDetections)
	assert.Equal(t, 1, summary.DecodeFailures)
	assert.Equal(t, 2, obs.count("frame_done"), "the last frame is still processed")

	e, ok := obs.first("decode_failure")
	require.True(t, ok)
	assert.InDelta(t, 0.5, e.ts, 1e-9)
	assert.ErrorIs(t, e.err, ErrDecodeFailure)
	assert.ErrorIs(t, e.err, video.ErrFrameSkipped)
}

func TestRun_EmptySource(t *testing.T) {
	p, err := NewBuilder().WithDecoder(fixedDecoder(helloRaw)).Build()
	require.NoError(t, err)

	summary, err := NewRunner(p).Run(context.Background(), &scriptedSource{err: io.EOF}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Frames)
	assert.Equal(t, 0, summary.Detections)
	assert.Empty(t, p.Store().Report())
}

func TestRun_CountsDecodeFailures(t *testing.T) {
	failing := DecoderFunc(func(context.Context, image.Image) ([]RawDetection, error) {
		return nil, errors.New("nope")
	})
	p, err := NewBuilder().WithMethods("identity", "invert").WithDecoder(failing).Build()
	require.NoError(t, err)

	summary, err := NewRunner(p).Run(context.Background(), video.NewMemorySource(threeFrames(), 25), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, 3, summary.FramesWithoutDetections)
	assert.Equal(t, 6, summary.DecodeFailures)
}
