package utils

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrInvalidFactor is returned when a scale factor is below 1.
var ErrInvalidFactor = errors.New("invalid factor: must be >= 1")

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Polygon is an ordered sequence of points describing a closed boundary.
type Polygon []Point

// Clone returns a copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	return append(Polygon(nil), p...)
}

// Equal reports whether both polygons have the same vertices in the same order.
func (p Polygon) Equal(o Polygon) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the polygon as "[(x, y), (x, y), ...]".
func (p Polygon) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, pt := range p {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%d, %d)", pt.X, pt.Y)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Key serializes the polygon into a compact string usable as a map key.
// Two polygons produce the same key iff they are Equal.
func (p Polygon) Key() string {
	var sb strings.Builder
	for i, pt := range p {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Itoa(pt.X))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(pt.Y))
	}
	return sb.String()
}

// Bounds returns the smallest rectangle containing every vertex.
func (p Polygon) Bounds() image.Rectangle {
	if len(p) == 0 {
		return image.Rectangle{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := minX, minY
	for _, pt := range p[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// ScalePolygon multiplies every coordinate by factor.
func ScalePolygon(p Polygon, factor int) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{X: pt.X * factor, Y: pt.Y * factor}
	}
	return out
}

// RemapPolygon maps a polygon from a frame upscaled by factor back to the
// original frame: each (x, y) becomes (floor(x/factor), floor(y/factor)).
// The result always has the same number of vertices as the input.
func RemapPolygon(p Polygon, factor int) (Polygon, error) {
	if factor < 1 {
		return nil, fmt.Errorf("remap polygon: %w (got %d)", ErrInvalidFactor, factor)
	}
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{X: floorDiv(pt.X, factor), Y: floorDiv(pt.Y, factor)}
	}
	return out, nil
}

// floorDiv divides rounding toward negative infinity. Go's integer division
// truncates toward zero, which differs for negative numerators.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
