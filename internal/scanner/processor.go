package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/transform"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"golang.org/x/text/encoding"
	xtransform "golang.org/x/text/transform"
)

// Config holds the frame processing settings.
type Config struct {
	ZoomFactor       int
	Methods          []string
	OverlayColor     color.RGBA
	OverlayThickness int
	Barcode          barcode.Options
}

// DefaultConfig returns the defaults: zoom 2, identity only, 2px green overlay.
func DefaultConfig() Config {
	return Config{
		ZoomFactor:       2,
		Methods:          []string{transform.Identity},
		OverlayColor:     color.RGBA{G: 255, A: 255},
		OverlayThickness: 2,
		Barcode:          barcode.Options{Formats: []barcode.Format{barcode.FormatQR}},
	}
}

// Builder constructs a Processor with fluent configuration.
type Builder struct {
	cfg      Config
	registry *transform.Registry
	decoder  Decoder
	store    *Store
	observer Observer
}

// NewBuilder creates a new processor builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithZoomFactor sets the integer upscale factor applied before decoding.
func (b *Builder) WithZoomFactor(f int) *Builder {
	b.cfg.ZoomFactor = f
	return b
}

// WithMethods selects transform methods by name. They run in registry order.
func (b *Builder) WithMethods(names ...string) *Builder {
	b.cfg.Methods = append([]string(nil), names...)
	return b
}

// WithOverlay sets the polygon highlight colour and line thickness.
func (b *Builder) WithOverlay(col color.RGBA, thickness int) *Builder {
	b.cfg.OverlayColor = col
	b.cfg.OverlayThickness = thickness
	return b
}

// WithBarcodeOptions configures the default decoder. Ignored when a decoder
// is set with WithDecoder.
func (b *Builder) WithBarcodeOptions(opts barcode.Options) *Builder {
	b.cfg.Barcode = opts
	return b
}

// WithRegistry sets the registry method names are resolved against.
func (b *Builder) WithRegistry(r *transform.Registry) *Builder {
	b.registry = r
	return b
}

// WithDecoder overrides the decoder.
func (b *Builder) WithDecoder(d Decoder) *Builder {
	b.decoder = d
	return b
}

// WithStore sets the store detections are accumulated in.
func (b *Builder) WithStore(s *Store) *Builder {
	b.store = s
	return b
}

// WithObserver sets the event observer.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// Build validates the configuration and returns a Processor.
func (b *Builder) Build() (*Processor, error) {
	if err := transform.ValidateFactor(b.cfg.ZoomFactor); err != nil {
		return nil, fmt.Errorf("zoom factor: %w", err)
	}
	if b.cfg.OverlayThickness < 1 {
		return nil, fmt.Errorf("overlay thickness must be >= 1 (got %d)", b.cfg.OverlayThickness)
	}
	if len(b.cfg.Methods) == 0 {
		return nil, errors.New("at least one transform method is required")
	}

	registry := b.registry
	if registry == nil {
		registry = transform.DefaultRegistry()
	}
	methods, err := registry.Resolve(b.cfg.Methods)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:      b.cfg,
		methods:  methods,
		decoder:  b.decoder,
		store:    b.store,
		observer: b.observer,
		stats:    Stats{Methods: make(map[string]common.DurationStats)},
	}
	if p.decoder == nil {
		p.decoder = NewBarcodeDecoder(nil, b.cfg.Barcode)
	}
	if p.store == nil {
		p.store = NewStore()
	}
	if p.observer == nil {
		p.observer = NoOpObserver{}
	}
	return p, nil
}

// Stats are counters accumulated by a Processor across calls.
type Stats struct {
	DecodeFailures int                             `json:"decode_failures"`
	PayloadErrors  int                             `json:"payload_errors"`
	Methods        map[string]common.DurationStats `json:"methods"`
}

// Processor runs every configured method against a frame.
// It is not safe for concurrent use.
type Processor struct {
	cfg      Config
	methods  []transform.Method
	decoder  Decoder
	store    *Store
	observer Observer
	stats    Stats
}

// Config returns the processor configuration.
func (p *Processor) Config() Config { return p.cfg }

// Methods returns the resolved methods in the order they run.
func (p *Processor) Methods() []transform.Method {
	return append([]transform.Method(nil), p.methods...)
}

// MethodNames returns the names of the resolved methods.
func (p *Processor) MethodNames() []string {
	names := make([]string, len(p.methods))
	for i, m := range p.methods {
		names[i] = m.Name
	}
	return names
}

// Store returns the store detections are accumulated in.
func (p *Processor) Store() *Store { return p.store }

// Observer returns the configured observer.
func (p *Processor) Observer() Observer { return p.observer }

// Stats returns a copy of the accumulated counters.
func (p *Processor) Stats() Stats {
	out := Stats{
		DecodeFailures: p.stats.DecodeFailures,
		PayloadErrors:  p.stats.PayloadErrors,
		Methods:        make(map[string]common.DurationStats, len(p.stats.Methods)),
	}
	for k, v := range p.stats.Methods {
		out.Methods[k] = v
	}
	return out
}

// Process runs the configured methods on frame. See ProcessMethods.
func (p *Processor) Process(ctx context.Context, frame image.Image, ts float64) (*image.RGBA, bool) {
	return p.ProcessMethods(ctx, frame, ts, p.methods)
}

// ProcessMethods tries each method on a pristine copy of frame, draws every
// found polygon onto the returned frame and submits detections to the store.
// When frame is an origin-anchored *image.RGBA the overlay is drawn in place.
// found reports whether any method decoded at least one code. Decode errors
// never abort the loop. When ctx is cancelled the remaining methods are
// skipped and no OnNoDetection event is sent for the frame.
func (p *Processor) ProcessMethods(ctx context.Context, frame image.Image, ts float64, methods []transform.Method) (*image.RGBA, bool) {
	annotated, err := utils.AsRGBA(frame)
	if err != nil {
		p.stats.DecodeFailures++
		p.observer.OnDecodeFailure(ts, "", fmt.Errorf("%w: %w", ErrDecodeFailure, err))
		return nil, false
	}
	pristine, err := utils.CloneRGBA(annotated)
	if err != nil {
		p.stats.DecodeFailures++
		p.observer.OnDecodeFailure(ts, "", fmt.Errorf("%w: %w", ErrDecodeFailure, err))
		return annotated, false
	}

	found := false
	for _, m := range methods {
		if ctx.Err() != nil {
			break
		}
		raws, elapsed, err := p.attempt(ctx, m, pristine)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.stats.DecodeFailures++
			p.observer.OnDecodeFailure(ts, m.Name, err)
			continue
		}
		ms := p.stats.Methods[m.Name]
		ms.Add(elapsed)
		p.stats.Methods[m.Name] = ms
		p.observer.OnMethodResult(ts, m.Name, len(raws), elapsed)

		if len(raws) > 0 {
			found = true
		}
		for _, raw := range raws {
			p.handle(annotated, raw, ts, m.Name)
		}
	}

	if !found && ctx.Err() == nil {
		p.observer.OnNoDetection(ts)
	}
	return annotated, found
}

func (p *Processor) handle(annotated *image.RGBA, raw RawDetection, ts float64, method string) {
	data, err := decodePayload(raw.Payload)
	if err != nil {
		p.stats.PayloadErrors++
		p.observer.OnPayloadError(ts, method, err)
		return
	}
	coords, err := utils.RemapPolygon(raw.Polygon, p.cfg.ZoomFactor)
	if err != nil {
		// zoom factor is validated in Build
		return
	}
	if len(coords) >= 4 {
		utils.DrawPolygon(annotated, coords, p.cfg.OverlayColor, p.cfg.OverlayThickness)
	}
	d := Detection{Time: ts, Data: data, Method: method, Coordinates: coords}
	inserted := p.store.Insert(d)
	p.observer.OnDetection(d, inserted)
}

// attempt applies m, upscales and decodes. Panics from the transform or the
// decoder are returned as errors wrapping ErrDecodeFailure.
func (p *Processor) attempt(ctx context.Context, m transform.Method, pristine image.Image) (raws []RawDetection, elapsed time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			raws = nil
			err = fmt.Errorf("%w: method %s: panic: %v", ErrDecodeFailure, m.Name, r)
		}
	}()

	prepared := m.Apply(pristine)
	up, err := transform.Upscale(prepared, p.cfg.ZoomFactor)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: method %s: %w", ErrDecodeFailure, m.Name, err)
	}

	timer := common.NewNamedTimer(m.Name)
	raws, err = p.decoder.Decode(ctx, up)
	elapsed = timer.Stop()
	if err != nil {
		return nil, elapsed, fmt.Errorf("%w: method %s: %w", ErrDecodeFailure, m.Name, err)
	}
	return raws, elapsed, nil
}

func decodePayload(b []byte) (string, error) {
	s, _, err := xtransform.String(encoding.UTF8Validator, string(b))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	return s, nil
}
