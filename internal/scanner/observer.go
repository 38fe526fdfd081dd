package scanner

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives discrete events from the Processor and the Runner.
// Callbacks run synchronously on the scanning goroutine; implementations that
// hand data to other goroutines must copy it.
type Observer interface {
	// OnRunStart is called once before the first frame is read.
	OnRunStart(info RunInfo)

	// OnFrameStart is called before a frame is processed.
	OnFrameStart(index int, ts float64)

	// OnMethodResult reports how many raw detections one method produced and
	// how long decoding took.
	OnMethodResult(ts float64, method string, count int, elapsed time.Duration)

	// OnDetection is called for every remapped detection; inserted is false
	// for duplicates already in the store.
	OnDetection(d Detection, inserted bool)

	// OnNoDetection is called when no method found anything in a frame.
	OnNoDetection(ts float64)

	// OnDecodeFailure reports a recoverable decode error (wraps ErrDecodeFailure).
	OnDecodeFailure(ts float64, method string, err error)

	// OnPayloadError reports a skipped detection (wraps ErrPayloadDecode).
	OnPayloadError(ts float64, method string, err error)

	// OnFrameDone is called after a frame is processed.
	OnFrameDone(index int, ts float64, found bool)

	// OnRunComplete is called once when the run ends, with or without error.
	OnRunComplete(summary Summary)
}

// NoOpObserver implements Observer but does nothing.
type NoOpObserver struct{}

func (NoOpObserver) OnRunStart(RunInfo)                                 {}
func (NoOpObserver) OnFrameStart(int, float64)                          {}
func (NoOpObserver) OnMethodResult(float64, string, int, time.Duration) {}
func (NoOpObserver) OnDetection(Detection, bool)                        {}
func (NoOpObserver) OnNoDetection(float64)                              {}
func (NoOpObserver) OnDecodeFailure(float64, string, error)             {}
func (NoOpObserver) OnPayloadError(float64, string, error)              {}
func (NoOpObserver) OnFrameDone(int, float64, bool)                     {}
func (NoOpObserver) OnRunComplete(Summary)                              {}

// LogObserver logs events using slog. Newly inserted detections are logged
// at info level, per-frame chatter at debug level.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogObserver creates a log-based observer. A nil logger uses slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger, level: slog.LevelDebug}
}

// WithFrameLevel sets the level used for per-frame and per-method events.
func (l *LogObserver) WithFrameLevel(level slog.Level) *LogObserver {
	l.level = level
	return l
}

func (l *LogObserver) log(level slog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), level, msg, args...)
}

func (l *LogObserver) OnRunStart(info RunInfo) {
	l.log(slog.LevelInfo, "Scan started",
		"source", info.Source,
		"methods", info.Methods,
		"zoom_factor", info.ZoomFactor,
	)
}

func (l *LogObserver) OnFrameStart(index int, ts float64) {
	l.log(l.level, "Processing frame", "frame", index, "time", ts)
}

func (l *LogObserver) OnMethodResult(ts float64, method string, count int, elapsed time.Duration) {
	l.log(l.level, "Method finished",
		"time", ts,
		"method", method,
		"codes", count,
		"elapsed", elapsed.Round(time.Microsecond),
	)
}

func (l *LogObserver) OnDetection(d Detection, inserted bool) {
	if !inserted {
		l.log(l.level, "Duplicate QR code", "data", d.Data, "method", d.Method, "time", d.Time)
		return
	}
	l.log(slog.LevelInfo, "QR code recognized",
		"time", d.Time,
		"data", d.Data,
		"method", d.Method,
		"coordinates", d.Coordinates.String(),
	)
}

func (l *LogObserver) OnNoDetection(ts float64) {
	l.log(l.level, "No QR code found", "time", ts)
}

func (l *LogObserver) OnDecodeFailure(ts float64, method string, err error) {
	l.log(slog.LevelWarn, "Decode failed", "time", ts, "method", method, "error", err)
}

func (l *LogObserver) OnPayloadError(ts float64, method string, err error) {
	l.log(slog.LevelWarn, "Payload skipped", "time", ts, "method", method, "error", err)
}

func (l *LogObserver) OnFrameDone(index int, ts float64, found bool) {
	l.log(l.level, "Frame done", "frame", index, "time", ts, "found", found)
}

func (l *LogObserver) OnRunComplete(s Summary) {
	l.log(slog.LevelInfo, "Scan completed",
		"frames", s.Frames,
		"frames_without_codes", s.FramesWithoutDetections,
		"skipped_frames", s.SkippedFrames,
		"decode_failures", s.DecodeFailures,
		"payload_errors", s.PayloadErrors,
		"distinct_codes", s.Detections,
		"reason", s.Reason,
		"elapsed", s.Duration.Round(time.Millisecond),
	)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that reports to all given observers.
// Nil entries are skipped.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, o := range observers {
		m.Add(o)
	}
	return m
}

// Add adds another observer.
func (m *MultiObserver) Add(o Observer) {
	if o != nil {
		m.observers = append(m.observers, o)
	}
}

func (m *MultiObserver) OnRunStart(info RunInfo) {
	for _, o := range m.observers {
		o.OnRunStart(info)
	}
}

func (m *MultiObserver) OnFrameStart(index int, ts float64) {
	for _, o := range m.observers {
		o.OnFrameStart(index, ts)
	}
}

func (m *MultiObserver) OnMethodResult(ts float64, method string, count int, elapsed time.Duration) {
	for _, o := range m.observers {
		o.OnMethodResult(ts, method, count, elapsed)
	}
}

func (m *MultiObserver) OnDetection(d Detection, inserted bool) {
	for _, o := range m.observers {
		o.OnDetection(d, inserted)
	}
}

func (m *MultiObserver) OnNoDetection(ts float64) {
	for _, o := range m.observers {
		o.OnNoDetection(ts)
	}
}

func (m *MultiObserver) OnDecodeFailure(ts float64, method string, err error) {
	for _, o := range m.observers {
		o.OnDecodeFailure(ts, method, err)
	}
}

func (m *MultiObserver) OnPayloadError(ts float64, method string, err error) {
	for _, o := range m.observers {
		o.OnPayloadError(ts, method, err)
	}
}

func (m *MultiObserver) OnFrameDone(index int, ts float64, found bool) {
	for _, o := range m.observers {
		o.OnFrameDone(index, ts, found)
	}
}

func (m *MultiObserver) OnRunComplete(s Summary) {
	for _, o := range m.observers {
		o.OnRunComplete(s)
	}
}
