package scanner

import (
	"context"
	"image"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Decoder finds codes in an image. An empty result with a nil error means
// nothing was found.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) ([]RawDetection, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, img image.Image) ([]RawDetection, error)

func (f DecoderFunc) Decode(ctx context.Context, img image.Image) ([]RawDetection, error) {
	return f(ctx, img)
}

type barcodeDecoder struct {
	backend barcode.Backend
	opts    barcode.Options
}

// NewBarcodeDecoder adapts a barcode backend. A nil backend selects the
// default gozxing backend.
func NewBarcodeDecoder(backend barcode.Backend, opts barcode.Options) Decoder {
	if backend == nil {
		backend = barcode.NewBackend()
	}
	return &barcodeDecoder{backend: backend, opts: opts}
}

func (d *barcodeDecoder) Decode(ctx context.Context, img image.Image) ([]RawDetection, error) {
	results, err := d.backend.Decode(ctx, img, d.opts)
	if err != nil {
		return nil, err
	}
	out := make([]RawDetection, 0, len(results))
	for _, r := range results {
		poly := make(utils.Polygon, len(r.Points))
		for i, p := range r.Points {
			poly[i] = utils.Point{X: p.X, Y: p.Y}
		}
		out = append(out, RawDetection{
			Payload: r.Payload,
			Polygon: poly,
			Format:  r.Format.String(),
		})
	}
	return out, nil
}
