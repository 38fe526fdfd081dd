package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/MeKo-Tech/qrscan/internal/server"
	"github.com/MeKo-Tech/qrscan/internal/video"
	"github.com/MeKo-Tech/qrscan/internal/video/cv"
	"github.com/spf13/cobra"
)

func newScanCommand(a *app) *cobra.Command {
	d := config.DefaultConfig()

	scanCmd := &cobra.Command{
		Use:   "scan [mode] [path]",
		Short: "Scan a video file, camera or image directory for QR codes",
		Long: `Scan frames for QR codes and report every distinct code once.

Modes:
  file, video, 1     a video file given by path
  camera, webcam, 2  a capture device selected with --device
  images             a directory of still images, read in file name order

The mode and path default to source.mode and source.path from the
configuration. The report is written to stdout unless --output is set.

Examples:
  qrscan scan file input.mp4
  qrscan scan 2 --display
  qrscan scan images ./frames --zoom 3 --methods identity,invert,contrast
  qrscan scan file input.mp4 --serve --port 8080 --format json`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args)
		},
	}

	f := scanCmd.Flags()
	f.Int("zoom", d.Scan.ZoomFactor, "integer upscale factor applied before decoding")
	f.StringSlice("methods", d.Scan.Methods, "pre-processing methods to apply (see 'qrscan methods')")
	f.StringSlice("formats", d.Scan.Formats, "barcode formats to decode (qr, datamatrix, aztec, code128, ean13)")
	f.Bool("try-harder", d.Scan.TryHarder, "spend more time looking for codes")
	f.String("overlay-color", d.Scan.OverlayColor, "outline color for detected codes (#RRGGBB)")
	f.Int("thickness", d.Scan.OverlayThickness, "outline thickness in pixels")
	f.Int("device", d.Source.Device, "camera device index")
	f.Float64("fps", d.Source.FPS, "frame rate for image directories (0 = 25)")
	f.Bool("display", d.Display.Enabled, "show annotated frames in a window")
	f.String("title", d.Display.Title, "display window title")
	f.String("stop-key", d.Display.StopKey, "key that stops the scan in the display window")
	f.String("format", d.Output.Format, "report format (text, json, csv, yaml)")
	f.StringP("output", "o", d.Output.File, "write the report to a file")
	f.Bool("serve", d.Server.Enabled, "serve the live detection feed over HTTP while scanning")
	f.String("host", d.Server.Host, "feed server host")
	f.Int("port", d.Server.Port, "feed server port")

	for key, flag := range map[string]string{
		"scan.zoom_factor":       "zoom",
		"scan.methods":           "methods",
		"scan.formats":           "formats",
		"scan.try_harder":        "try-harder",
		"scan.overlay_color":     "overlay-color",
		"scan.overlay_thickness": "thickness",
		"source.device":          "device",
		"source.fps":             "fps",
		"display.enabled":        "display",
		"display.title":          "title",
		"display.stop_key":       "stop-key",
		"output.format":          "format",
		"output.file":            "output",
		"server.enabled":         "serve",
		"server.host":            "host",
		"server.port":            "port",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}

	return scanCmd
}

func (a *app) runScan(cmd *cobra.Command, args []string) error {
	cfg := a.cfg

	modeArg, path := cfg.Source.Mode, cfg.Source.Path
	if len(args) > 0 {
		modeArg = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}

	mode, err := scanner.ParseMode(modeArg)
	if err != nil {
		return err
	}

	scanCfg, err := cfg.ToScannerConfig()
	if err != nil {
		return fmt.Errorf("invalid scan configuration: %w", err)
	}

	observers := scanner.NewMultiObserver(scanner.NewLogObserver(a.logger))

	var srv *server.Server
	if cfg.Server.Enabled {
		metrics := server.NewMetrics()
		srv = server.NewServer(cfg.ToServerConfig(), nil, metrics, a.logger)
		observers.Add(srv.Feed())
		observers.Add(metrics.Observer())
	}

	proc, err := scanner.NewBuilder().
		WithConfig(scanCfg).
		WithObserver(observers).
		Build()
	if err != nil {
		return err
	}

	src, err := openSource(mode, path, cfg.Source)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			a.logger.Warn("Failed to close source", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serverDone chan error
	if srv != nil {
		serverCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		serverDone = make(chan error, 1)
		go func() { serverDone <- srv.ListenAndServe(serverCtx) }()
		defer func() {
			stopServer()
			if serr := <-serverDone; serr != nil {
				a.logger.Error("Feed server failed", "error", serr)
			}
		}()
	}

	var display scanner.Display
	if cfg.Display.Enabled {
		w := cv.NewWindow(cfg.Display.Title, cfg.Display.StopKey)
		defer func() { _ = w.Close() }()
		display = w
	}

	_, runErr := scanner.NewRunner(proc).Run(ctx, src, display)
	if runErr != nil {
		a.logger.Error("Scan ended with an error", "error", runErr)
	}

	// Whatever was found before a failure is still reported.
	if err := writeReport(cmd.OutOrStdout(), cfg.Output, proc.Store().Report()); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// openSource opens the frame source for mode.
func openSource(mode scanner.Mode, path string, sc config.SourceConfig) (video.Source, error) {
	switch mode {
	case scanner.ModeFile:
		if path == "" {
			return nil, fmt.Errorf("%w: file mode needs a path", video.ErrSourceOpen)
		}
		return cv.OpenFile(path)
	case scanner.ModeCamera:
		return cv.OpenCamera(sc.Device)
	case scanner.ModeImages:
		if path == "" {
			return nil, fmt.Errorf("%w: images mode needs a directory", video.ErrSourceOpen)
		}
		return video.NewImageSequence(path, sc.FPS)
	}
	return nil, fmt.Errorf("%w: %q", scanner.ErrUnknownMode, mode)
}

func writeReport(stdout io.Writer, out config.OutputConfig, detections []scanner.Detection) error {
	if out.File == "" {
		return scanner.WriteReport(stdout, detections, out.Format)
	}

	f, err := os.Create(out.File)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := scanner.WriteReport(f, detections, out.Format); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
