package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// CloneRGBA copies img into a new RGBA image whose bounds start at the origin.
func CloneRGBA(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "clone", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst, nil
}

// AsRGBA returns img itself when it already is an origin-anchored RGBA image,
// otherwise a converted copy.
func AsRGBA(img image.Image) (*image.RGBA, error) {
	if rgba, ok := img.(*image.RGBA); ok && rgba != nil && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}
	return CloneRGBA(img)
}

// PixelsEqual reports whether two images have identical dimensions and
// identical RGBA values at every pixel.
func PixelsEqual(a, b image.Image) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return false
	}
	for y := range ab.Dy() {
		for x := range ab.Dx() {
			r1, g1, b1, a1 := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, a2 := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				return false
			}
		}
	}
	return true
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.RGBA, error) {
	raw := s
	if s != "" && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", raw)
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", raw, err)
	}
	return color.RGBA{R: uint8(rv), G: uint8(gv), B: uint8(bv), A: 255}, nil //nolint:gosec // G115: values come from two hex digits
}
