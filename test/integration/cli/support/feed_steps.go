package support

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/MeKo-Tech/qrscan/internal/server"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/cucumber/godog"
)

func (tc *TestContext) aRunningFeedServer() error {
	metrics := server.NewMetrics()
	tc.Feed = server.NewFeed(nil, metrics)
	srv := server.NewServer(server.Config{}, tc.Feed, metrics, nil)

	tc.HTTPServer = httptest.NewServer(srv.Handler())
	tc.Feed.OnRunStart(scanner.RunInfo{Source: "memory", Methods: []string{"identity"}, ZoomFactor: 2})
	return nil
}

func (tc *TestContext) feedDetection(data string, ts float64, inserted bool) {
	tc.Feed.OnDetection(scanner.Detection{
		Time:        ts,
		Data:        data,
		Method:      "identity",
		Coordinates: utils.Polygon{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}, {X: 0, Y: 5}},
	}, inserted)
}

func (tc *TestContext) theScannerReports(data string, ts float64) error {
	tc.feedDetection(data, ts, true)
	return nil
}

func (tc *TestContext) theScannerSeesAgain(data string, ts float64) error {
	tc.feedDetection(data, ts, false)
	return nil
}

func (tc *TestContext) theRunCompletes() error {
	tc.Feed.OnRunComplete(scanner.Summary{Reason: scanner.StopEndOfStream, Detections: len(tc.Feed.Snapshot())})
	return nil
}

func (tc *TestContext) iRequest(path string) error {
	if tc.HTTPServer == nil {
		return fmt.Errorf("no feed server is running")
	}
	resp, err := http.Get(tc.HTTPServer.URL + path) //nolint:gosec,noctx // test server URL
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastHTTPStatusCode = resp.StatusCode
	tc.LastHTTPResponse = string(body)
	return nil
}

func (tc *TestContext) theResponseStatusShouldBe(code int) error {
	if tc.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, tc.LastHTTPStatusCode, tc.LastHTTPResponse)
	}
	return nil
}

func (tc *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(tc.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q:\n%s", text, tc.LastHTTPResponse)
	}
	return nil
}

func (tc *TestContext) theFeedShouldReport(n int) error {
	var resp server.DetectionsResponse
	if err := json.Unmarshal([]byte(tc.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("invalid detections response: %w", err)
	}
	if resp.Count != n || len(resp.Detections) != n {
		return fmt.Errorf("expected %d detections, got count=%d len=%d", n, resp.Count, len(resp.Detections))
	}
	return nil
}

func (tc *TestContext) theServerShouldReportRunning(want string) error {
	var resp server.HealthResponse
	if err := json.Unmarshal([]byte(tc.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	if got := fmt.Sprint(resp.Running); got != want {
		return fmt.Errorf("expected running=%s, got %s", want, got)
	}
	return nil
}

// RegisterFeedSteps registers the feed server steps.
func (tc *TestContext) RegisterFeedSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running feed server$`, tc.aRunningFeedServer)
	sc.Step(`^the scanner reports "([^"]*)" at ([0-9.]+) s$`, tc.theScannerReports)
	sc.Step(`^the scanner sees "([^"]*)" again at ([0-9.]+) s$`, tc.theScannerSeesAgain)
	sc.Step(`^the run completes$`, tc.theRunCompletes)
	sc.Step(`^I request "([^"]*)"$`, tc.iRequest)
	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	sc.Step(`^the server should report running as (true|false)$`, tc.theServerShouldReportRunning)
	sc.Step(`^the feed should report (\d+) detections?$`, tc.theFeedShouldReport)
}
