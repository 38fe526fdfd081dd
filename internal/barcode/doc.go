// Package barcode wraps github.com/makiuchi-d/gozxing behind a small Backend
// interface. QR codes are read with the multi-symbol reader so a single frame
// can yield several codes; other symbologies are opt-in via Options.Formats.
package barcode
