package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	multiqrcode "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
)

type gozxingBackend struct{}

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) (results []Result, err error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("barcode: decoder panic: %v", r)
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("barcode: prepare bitmap: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = []Format{FormatQR}
	}

	var errs []error
	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := decodeFormat(bmp, f, hints)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		results = append(results, found...)
	}
	if len(results) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

func decodeFormat(bmp *gozxing.BinaryBitmap, f Format, hints map[gozxing.DecodeHintType]interface{}) ([]Result, error) {
	if f == FormatQR {
		rs, err := multiqrcode.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		out := make([]Result, 0, len(rs))
		for _, r := range rs {
			out = append(out, convertResult(r))
		}
		return out, nil
	}

	reader, ok := singleReader(f)
	if !ok {
		return nil, fmt.Errorf("no reader for format %s", f)
	}
	r, err := reader.Decode(bmp, hints)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return []Result{convertResult(r)}, nil
}

func singleReader(f Format) (gozxing.Reader, bool) {
	switch f {
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader(), true
	case FormatAztec:
		return aztec.NewAztecReader(), true
	case FormatCode128:
		return oned.NewCode128Reader(), true
	case FormatEAN13:
		return oned.NewEAN13Reader(), true
	}
	return nil, false
}

func isNotFound(err error) bool {
	var nf gozxing.NotFoundException
	return errors.As(err, &nf)
}

func convertResult(r *gozxing.Result) Result {
	f := mapFormatFromZXing(r.GetBarcodeFormat())
	var pts []Point
	if f == FormatQR {
		pts = qrOutline(r.GetResultPoints())
	} else {
		pts = roundPoints(r.GetResultPoints())
	}
	text := r.GetText()
	return Result{
		Format:  f,
		Text:    text,
		Payload: []byte(text),
		Points:  pts,
	}
}

func roundPoints(rps []gozxing.ResultPoint) []Point {
	pts := make([]Point, 0, len(rps))
	for _, p := range rps {
		if p == nil {
			continue
		}
		pts = append(pts, Point{X: int(math.Round(p.GetX())), Y: int(math.Round(p.GetY()))})
	}
	return pts
}

// moduleSizer is implemented by the finder patterns the QR detector reports.
type moduleSizer interface {
	GetEstimatedModuleSize() float64
}

// qrOutline returns the outer corners of a QR symbol as TL, TR, BR, BL. The
// detector reports finder centres (bottom-left, top-left, top-right), which
// sit 3.5 modules inside the symbol edge, so the quad is pushed outwards by
// that much along both axes. Without a module size estimate it falls back to
// the quad through the finder centres.
func qrOutline(rps []gozxing.ResultPoint) []Point {
	if len(rps) < 3 || rps[0] == nil || rps[1] == nil || rps[2] == nil {
		return roundPoints(rps)
	}
	bl, tl, tr := rps[0], rps[1], rps[2]
	inner := completeQuad(roundPoints(rps[:3]))

	dim, ok := qrDimension(tl, tr, bl)
	if !ok {
		return inner
	}
	n := float64(dim - 7)
	ux, uy := (tr.GetX()-tl.GetX())/n, (tr.GetY()-tl.GetY())/n
	vx, vy := (bl.GetX()-tl.GetX())/n, (bl.GetY()-tl.GetY())/n

	const q = 3.5
	corner := func(x, y, su, sv float64) Point {
		return Point{
			X: int(math.Round(x + q*(su*ux+sv*vx))),
			Y: int(math.Round(y + q*(su*uy+sv*vy))),
		}
	}
	brX := tr.GetX() + bl.GetX() - tl.GetX()
	brY := tr.GetY() + bl.GetY() - tl.GetY()
	return []Point{
		corner(tl.GetX(), tl.GetY(), -1, -1),
		corner(tr.GetX(), tr.GetY(), 1, -1),
		corner(brX, brY, 1, 1),
		corner(bl.GetX(), bl.GetY(), -1, 1),
	}
}

// qrDimension estimates the symbol size in modules from the finder centres,
// snapping to a valid 4k+1 dimension the same way the detector does.
func qrDimension(tl, tr, bl gozxing.ResultPoint) (int, bool) {
	var sum float64
	var count int
	for _, p := range []gozxing.ResultPoint{tl, tr, bl} {
		if ms, ok := p.(moduleSizer); ok && ms.GetEstimatedModuleSize() > 0 {
			sum += ms.GetEstimatedModuleSize()
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	module := sum / float64(count)

	across := int(math.Round(gozxing.ResultPoint_Distance(tl, tr) / module))
	down := int(math.Round(gozxing.ResultPoint_Distance(tl, bl) / module))
	dim := (across+down)/2 + 7
	switch dim % 4 {
	case 0:
		dim++
	case 2:
		dim--
	case 3:
		return 0, false
	}
	if dim < 21 {
		return 0, false
	}
	return dim, true
}

// completeQuad turns QR finder centres (bottom-left, top-left, top-right,
// optionally followed by an alignment pattern) into TL, TR, BR, BL.
func completeQuad(pts []Point) []Point {
	if len(pts) < 3 {
		return pts
	}
	bl, tl, tr := pts[0], pts[1], pts[2]
	br := Point{X: tr.X + bl.X - tl.X, Y: tr.Y + bl.Y - tl.Y}
	return []Point{tl, tr, br, bl}
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	default:
		return FormatUnknown
	}
}
