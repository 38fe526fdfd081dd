package barcode

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatCode128
	FormatEAN13
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatAztec:      "aztec",
	FormatCode128:    "code128",
	FormatEAN13:      "ean13",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps a case-insensitive symbology name to a Format.
func ParseFormat(s string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "qr", "qrcode":
		return FormatQR, nil
	case "datamatrix":
		return FormatDataMatrix, nil
	case "aztec":
		return FormatAztec, nil
	case "code128":
		return FormatCode128, nil
	case "ean13":
		return FormatEAN13, nil
	}
	return FormatUnknown, fmt.Errorf("unsupported barcode format %q", s)
}

// ParseFormats parses a list of names; an empty list yields QR only.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return []Format{FormatQR}, nil
	}
	out := make([]Format, 0, len(names))
	seen := make(map[Format]bool, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means QR.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded barcode.
type Result struct {
	Format  Format
	Text    string
	Payload []byte
	Points  []Point // Corner quadrilateral for 2D codes, end points for 1D codes
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the gozxing-backed implementation.
func NewBackend() Backend { return &gozxingBackend{} }
