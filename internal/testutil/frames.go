package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// QRImage renders content as a black-on-white QR code of roughly size×size
// pixels, including the standard quiet zone.
func QRImage(t *testing.T, content string, size int) *image.RGBA {
	t.Helper()

	img, err := EncodeQR(content, size)
	require.NoError(t, err, "encode QR %q", content)
	return img
}

// EncodeQR is the non-testing variant of QRImage.
func EncodeQR(content string, size int) (*image.RGBA, error) {
	m, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("encode QR: %w", err)
	}
	w, h := m.GetWidth(), m.GetHeight()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if m.Get(x, y) {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img, nil
}

// DarkBounds returns the smallest rectangle holding every near-black pixel of
// img. For a rendered QR code this is the symbol without its quiet zone.
func DarkBounds(img image.Image) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if cr>>8 < 50 && cg>>8 < 50 && cb>>8 < 50 {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// BlankFrame returns a frame filled with bg.
func BlankFrame(width, height int, bg color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	return img
}

// Place copies src onto dst with its top-left corner at at.
func Place(dst *image.RGBA, src image.Image, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}

// Label writes a short caption into the bottom-left corner of a frame, the
// way a camera overlays its own timestamp.
func Label(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 90, G: 90, B: 90, A: 255}),
		Face: face,
		Dot:  fixed.P(dst.Bounds().Min.X+2, dst.Bounds().Max.Y-face.Metrics().Descent.Ceil()-1),
	}
	d.DrawString(text)
}

// FrameWithQR returns a white frame of the given size with a QR code for
// content placed at at, plus a frame label.
func FrameWithQR(t *testing.T, width, height int, content string, qrSize int, at image.Point, label string) *image.RGBA {
	t.Helper()

	frame := BlankFrame(width, height, color.White)
	Place(frame, QRImage(t, content, qrSize), at)
	if label != "" {
		Label(frame, label)
	}
	return frame
}

// WriteFrames stores frames as frame_0000.png, frame_0001.png, ... in dir.
func WriteFrames(t *testing.T, dir string, frames []image.Image) []string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	paths := make([]string, 0, len(frames))
	for i, f := range frames {
		p := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))
		SaveImage(t, f, p)
		paths = append(paths, p)
	}
	return paths
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}
