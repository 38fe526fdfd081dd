package video

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestImageSequence_OrderAndTimes(t *testing.T) {
	dir := t.TempDir()
	frames := []image.Image{
		testutil.BlankFrame(8, 6, color.White),
		testutil.BlankFrame(8, 6, color.Black),
		testutil.BlankFrame(8, 6, color.White),
	}
	testutil.WriteFrames(t, dir, frames)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	seq, err := NewImageSequence(dir, 2)
	require.NoError(t, err)
	defer func() { _ = seq.Close() }()
	assert.Equal(t, 3, seq.Len())
	assert.Equal(t, "images:"+dir, seq.String())

	ctx := context.Background()
	var times []float64
	for {
		f, err := seq.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 6), f.Image.Bounds())
		times = append(times, f.Time)
	}
	assert.Equal(t, []float64{0, 0.5, 1}, times)

	_, err = seq.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestImageSequence_BMPAndDefaultFPS(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.bmp", "b.bmp"} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, bmp.Encode(f, testutil.BlankFrame(4, 4, color.White)))
		require.NoError(t, f.Close())
	}

	seq, err := NewImageSequence(dir, 0)
	require.NoError(t, err)
	assert.InDelta(t, DefaultFPS, seq.FPS(), 1e-9)

	_, err = seq.Next(context.Background())
	require.NoError(t, err)
	f, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1/DefaultFPS, f.Time, 1e-9)
}

func TestImageSequence_OpenErrors(t *testing.T) {
	_, err := NewImageSequence(filepath.Join(t.TempDir(), "missing"), 25)
	assert.ErrorIs(t, err, ErrSourceOpen)

	_, err = NewImageSequence(t.TempDir(), 25)
	assert.ErrorIs(t, err, ErrSourceOpen)
}

func TestImageSequence_CorruptFrame(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o600))

	seq, err := NewImageSequence(dir, 25)
	require.NoError(t, err)
	f, err := seq.Next(context.Background())
	assert.ErrorIs(t, err, ErrFrameSkipped)
	assert.NotErrorIs(t, err, ErrFrameRead)
	assert.Equal(t, 0, f.Index)
	assert.Nil(t, f.Image)

	_, err = seq.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestImageSequence_CorruptMiddleFrame(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFrames(t, dir, []image.Image{
		testutil.BlankFrame(4, 4, color.White),
		testutil.BlankFrame(4, 4, color.White),
		testutil.BlankFrame(4, 4, color.White),
	})
	require.NoError(t, os.WriteFile(paths[1], []byte("garbage"), 0o600))

	seq, err := NewImageSequence(dir, 10)
	require.NoError(t, err)
	ctx := context.Background()

	f, err := seq.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)

	f, err = seq.Next(ctx)
	require.ErrorIs(t, err, ErrFrameSkipped)
	assert.Equal(t, 1, f.Index)
	assert.InDelta(t, 0.1, f.Time, 1e-9)

	f, err = seq.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Index)
	require.NotNil(t, f.Image)
}

func TestMemorySource(t *testing.T) {
	frames := []image.Image{
		testutil.BlankFrame(2, 2, color.White),
		image.NewGray(image.Rect(0, 0, 2, 2)),
	}
	src := NewMemorySource(frames, 1)
	ctx := context.Background()

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)
	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)
	assert.InDelta(t, 1.0, f.Time, 1e-9)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewMemorySource(frames, 1).Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewTimedMemorySource(frames, []float64{0})
	assert.ErrorIs(t, err, ErrSourceOpen)

	timed, err := NewTimedMemorySource(frames, []float64{0.5, 3})
	require.NoError(t, err)
	require.NoError(t, timed.Close())
	_, err = timed.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
