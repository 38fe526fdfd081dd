package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrscan/cmd/qrscan/cmd"
	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/cucumber/godog"
)

const frameSize = 200

// writeFrame stores img as the next frame_NNNN.png in the frames directory.
func (tc *TestContext) writeFrame(img image.Image) error {
	if err := testutil.EnsureDir(tc.FramesDir); err != nil {
		return err
	}
	path := filepath.Join(tc.FramesDir, fmt.Sprintf("frame_%04d.png", tc.frameCount))
	f, err := os.Create(path) //nolint:gosec // G304: path is inside the scenario temp dir
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	tc.frameCount++
	return nil
}

func (tc *TestContext) framesShowing(n int, content string) error {
	qr, err := testutil.EncodeQR(content, 120)
	if err != nil {
		return fmt.Errorf("encode %q: %w", content, err)
	}
	frame := testutil.BlankFrame(frameSize, frameSize, color.White)
	testutil.Place(frame, qr, image.Pt(40, 40))
	for range n {
		if err := tc.writeFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TestContext) blankFrames(n int) error {
	for range n {
		if err := tc.writeFrame(testutil.BlankFrame(frameSize, frameSize, color.White)); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TestContext) configFile(content *godog.DocString) error {
	return os.WriteFile(filepath.Join(tc.TempDir, "qrscan.yaml"), []byte(content.Content), 0o600)
}

func (tc *TestContext) expand(arg string) string {
	return strings.NewReplacer("{frames}", tc.FramesDir, "{tmp}", tc.TempDir).Replace(arg)
}

// iRunQrscan executes the CLI in-process from the scenario directory.
func (tc *TestContext) iRunQrscan(argLine string) error {
	args := strings.Fields(argLine)
	for i := range args {
		args[i] = tc.expand(args[i])
	}

	if err := os.Chdir(tc.TempDir); err != nil {
		return err
	}

	root := cmd.NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	tc.LastArgs = args
	tc.LastError = root.Execute()
	tc.LastOutput = stdout.String()
	tc.LastStderr = stderr.String()
	return nil
}

func (tc *TestContext) theCommandShouldSucceed() error {
	if tc.LastError != nil {
		return fmt.Errorf("command %v failed: %w\nlogs:\n%s", tc.LastArgs, tc.LastError, tc.LastStderr)
	}
	return nil
}

func (tc *TestContext) theCommandShouldFail() error {
	if tc.LastError == nil {
		return fmt.Errorf("command %v succeeded unexpectedly\noutput:\n%s", tc.LastArgs, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theErrorShouldMention(text string) error {
	if tc.LastError == nil {
		return fmt.Errorf("expected an error mentioning %q, got none", text)
	}
	if !strings.Contains(tc.LastError.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", tc.LastError, text)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(tc.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldBeEmpty() error {
	if tc.LastOutput != "" {
		return fmt.Errorf("expected no output, got:\n%s", tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theLogShouldContain(text string) error {
	if !strings.Contains(tc.LastStderr, text) {
		return fmt.Errorf("log does not contain %q:\n%s", text, tc.LastStderr)
	}
	return nil
}

func (tc *TestContext) jsonReport() ([]scanner.Detection, error) {
	var ds []scanner.Detection
	if err := json.Unmarshal([]byte(tc.LastOutput), &ds); err != nil {
		return nil, fmt.Errorf("output is not a JSON report: %w\n%s", err, tc.LastOutput)
	}
	return ds, nil
}

func (tc *TestContext) theReportShouldList(n int) error {
	ds, err := tc.jsonReport()
	if err != nil {
		return err
	}
	if len(ds) != n {
		return fmt.Errorf("expected %d detections, got %d: %+v", n, len(ds), ds)
	}
	return nil
}

func (tc *TestContext) detectionShouldHave(idx int, data, method string) error {
	ds, err := tc.jsonReport()
	if err != nil {
		return err
	}
	if idx < 1 || idx > len(ds) {
		return fmt.Errorf("detection %d out of range (have %d)", idx, len(ds))
	}
	d := ds[idx-1]
	if d.Data != data || d.Method != method {
		return fmt.Errorf("detection %d is %q via %q, want %q via %q", idx, d.Data, d.Method, data, method)
	}
	return nil
}

func (tc *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(filepath.Join(tc.TempDir, tc.expand(name))) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (tc *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(filepath.Join(tc.TempDir, tc.expand(name)))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain %q:\n%s", name, text, data)
	}
	return nil
}

// RegisterScanSteps registers the CLI steps.
func (tc *TestContext) RegisterScanSteps(sc *godog.ScenarioContext) {
	sc.Step(`^(\d+) frames? showing "([^"]*)"$`, tc.framesShowing)
	sc.Step(`^(\d+) blank frames?$`, tc.blankFrames)
	sc.Step(`^a configuration file:$`, tc.configFile)
	sc.Step(`^I run qrscan "([^"]*)"$`, tc.iRunQrscan)
	sc.Step(`^the command should succeed$`, tc.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, tc.theCommandShouldFail)
	sc.Step(`^the error should mention "([^"]*)"$`, tc.theErrorShouldMention)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should be empty$`, tc.theOutputShouldBeEmpty)
	sc.Step(`^the log should contain "([^"]*)"$`, tc.theLogShouldContain)
	sc.Step(`^the report should list (\d+) detections?$`, tc.theReportShouldList)
	sc.Step(`^detection (\d+) should have data "([^"]*)" and method "([^"]*)"$`, tc.detectionShouldHave)
	sc.Step(`^the file "([^"]*)" should exist$`, tc.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, tc.theFileShouldContain)
}
