package scanner

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

var helloRaw = RawDetection{
	Payload: []byte("HELLO"),
	Polygon: utils.Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
	Format:  "qr",
}

// fixedDecoder returns the same raw detections for every image.
func fixedDecoder(raws ...RawDetection) DecoderFunc {
	return func(context.Context, image.Image) ([]RawDetection, error) {
		out := make([]RawDetection, len(raws))
		copy(out, raws)
		return out, nil
	}
}

// countingDecoder counts calls and records the size of each image.
type countingDecoder struct {
	mu    sync.Mutex
	calls int
	sizes []image.Point
	next  Decoder
}

func (c *countingDecoder) Decode(ctx context.Context, img image.Image) ([]RawDetection, error) {
	c.mu.Lock()
	c.calls++
	c.sizes = append(c.sizes, img.Bounds().Size())
	c.mu.Unlock()
	return c.next.Decode(ctx, img)
}

func whiteFrame(w, h int) *image.RGBA {
	return testutil.BlankFrame(w, h, color.White)
}

type recordedEvent struct {
	kind   string
	method string
	ts     float64
	count  int
	err    error
	det    Detection
	insert bool
}

// recordingObserver keeps every event in order.
type recordingObserver struct {
	events  []recordedEvent
	info    RunInfo
	summary Summary
}

func (r *recordingObserver) add(e recordedEvent) { r.events = append(r.events, e) }

func (r *recordingObserver) kinds() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.kind
	}
	return out
}

func (r *recordingObserver) count(kind string) int {
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingObserver) first(kind string) (recordedEvent, bool) {
	for _, e := range r.events {
		if e.kind == kind {
			return e, true
		}
	}
	return recordedEvent{}, false
}

func (r *recordingObserver) OnRunStart(info RunInfo) {
	r.info = info
	r.add(recordedEvent{kind: "run_start"})
}

func (r *recordingObserver) OnFrameStart(_ int, ts float64) {
	r.add(recordedEvent{kind: "frame_start", ts: ts})
}

func (r *recordingObserver) OnMethodResult(ts float64, method string, count int, _ time.Duration) {
	r.add(recordedEvent{kind: "method", ts: ts, method: method, count: count})
}

func (r *recordingObserver) OnDetection(d Detection, inserted bool) {
	r.add(recordedEvent{kind: "detection", ts: d.Time, method: d.Method, det: d, insert: inserted})
}

func (r *recordingObserver) OnNoDetection(ts float64) {
	r.add(recordedEvent{kind: "none", ts: ts})
}

func (r *recordingObserver) OnDecodeFailure(ts float64, method string, err error) {
	r.add(recordedEvent{kind: "decode_failure", ts: ts, method: method, err: err})
}

func (r *recordingObserver) OnPayloadError(ts float64, method string, err error) {
	r.add(recordedEvent{kind: "payload_error", ts: ts, method: method, err: err})
}

func (r *recordingObserver) OnFrameDone(_ int, ts float64, _ bool) {
	r.add(recordedEvent{kind: "frame_done", ts: ts})
}

func (r *recordingObserver) OnRunComplete(s Summary) {
	r.summary = s
	r.add(recordedEvent{kind: "run_complete"})
}
