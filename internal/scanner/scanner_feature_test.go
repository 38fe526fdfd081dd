package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/MeKo-Tech/qrscan/internal/video"
	"github.com/cucumber/godog"
)

var pointPattern = regexp.MustCompile(`\((-?\d+),\s*(-?\d+)\)`)

type scanFeature struct {
	decoder Decoder
	zoom    int
	methods []string
	proc    *Processor
	summary Summary
}

func parsePoints(s string) (utils.Polygon, error) {
	var poly utils.Polygon
	for _, m := range pointPattern.FindAllStringSubmatch(s, -1) {
		x, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, err
		}
		y, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, err
		}
		poly = append(poly, utils.Point{X: x, Y: y})
	}
	if len(poly) == 0 {
		return nil, fmt.Errorf("no points in %q", s)
	}
	return poly, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (f *scanFeature) aDecoderThatFinds(data, points string) error {
	poly, err := parsePoints(points)
	if err != nil {
		return err
	}
	f.decoder = fixedDecoder(RawDetection{Payload: []byte(data), Polygon: poly, Format: "qr"})
	return nil
}

func (f *scanFeature) aDecoderThatAlwaysFails() error {
	f.decoder = DecoderFunc(func(context.Context, image.Image) ([]RawDetection, error) {
		return nil, errors.New("decoder exploded")
	})
	return nil
}

func (f *scanFeature) aZoomFactorOf(zoom int) error {
	f.zoom = zoom
	return nil
}

func (f *scanFeature) theMethods(list string) error {
	f.methods = splitList(list)
	return nil
}

func (f *scanFeature) iScanFramesAtTimes(n int, times string) error {
	var ts []float64
	for _, s := range splitList(times) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		ts = append(ts, v)
	}
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = whiteFrame(24, 24)
	}
	src, err := video.NewTimedMemorySource(frames, ts)
	if err != nil {
		return err
	}

	f.proc, err = NewBuilder().
		WithZoomFactor(f.zoom).
		WithMethods(f.methods...).
		WithDecoder(f.decoder).
		Build()
	if err != nil {
		return err
	}
	f.summary, err = NewRunner(f.proc).Run(context.Background(), src, nil)
	return err
}

func (f *scanFeature) theDetectionLogHasEntries(n int) error {
	if got := f.proc.Store().Len(); got != n {
		return fmt.Errorf("expected %d entries, got %d", n, got)
	}
	return nil
}

func (f *scanFeature) entry(i int) (Detection, error) {
	report := f.proc.Store().Report()
	if i < 1 || i > len(report) {
		return Detection{}, fmt.Errorf("no entry %d (log has %d)", i, len(report))
	}
	return report[i-1], nil
}

func (f *scanFeature) entryHasDataMethodAndTime(i int, data, method string, ts float64) error {
	d, err := f.entry(i)
	if err != nil {
		return err
	}
	if d.Data != data || d.Method != method || d.Time != ts {
		return fmt.Errorf("entry %d is %+v", i, d)
	}
	return nil
}

func (f *scanFeature) entryHasCoordinates(i int, coords string) error {
	d, err := f.entry(i)
	if err != nil {
		return err
	}
	want, err := parsePoints(coords)
	if err != nil {
		return err
	}
	if !d.Coordinates.Equal(want) {
		return fmt.Errorf("entry %d has coordinates %s, want %s", i, d.Coordinates, want)
	}
	return nil
}

func (f *scanFeature) theReportLineIs(i int, line string) error {
	d, err := f.entry(i)
	if err != nil {
		return err
	}
	if got := FormatLine(d); got != line {
		return fmt.Errorf("report line %d is %q", i, got)
	}
	return nil
}

func (f *scanFeature) framesWereProcessed(n int) error {
	if f.summary.Frames != n {
		return fmt.Errorf("expected %d frames, got %d", n, f.summary.Frames)
	}
	return nil
}

func (f *scanFeature) decodeFailuresWereReported(n int) error {
	if f.summary.DecodeFailures != n {
		return fmt.Errorf("expected %d decode failures, got %d", n, f.summary.DecodeFailures)
	}
	return nil
}

func initializeScanScenario(sc *godog.ScenarioContext) {
	f := &scanFeature{zoom: 2, methods: []string{"identity"}}

	sc.Step(`^a decoder that finds "([^"]*)" at (.+) in every frame$`, f.aDecoderThatFinds)
	sc.Step(`^a decoder that always fails$`, f.aDecoderThatAlwaysFails)
	sc.Step(`^a zoom factor of (\d+)$`, f.aZoomFactorOf)
	sc.Step(`^the methods "([^"]*)"$`, f.theMethods)
	sc.Step(`^I scan (\d+) frames at times (.+)$`, f.iScanFramesAtTimes)
	sc.Step(`^the detection log has (\d+) entr(?:y|ies)$`, f.theDetectionLogHasEntries)
	sc.Step(`^entry (\d+) has data "([^"]*)", method "([^"]*)" and time ([\d.]+)$`, f.entryHasDataMethodAndTime)
	sc.Step(`^entry (\d+) has coordinates (.+)$`, f.entryHasCoordinates)
	sc.Step(`^the report line (\d+) is "(.*)"$`, f.theReportLineIs)
	sc.Step(`^(\d+) frames were processed$`, f.framesWereProcessed)
	sc.Step(`^(\d+) decode failures were reported$`, f.decodeFailuresWereReported)
}

func TestScanningFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeScanScenario,
		Options: &godog.Options{
			Format:   format,
			Paths:    []string{filepath.Join("features", "scanning.feature")},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
