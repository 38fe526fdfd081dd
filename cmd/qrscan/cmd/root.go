package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/version"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "qrscan/skip-config"

// app holds the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	runID     string
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "qrscan",
		Short: "Scan video streams for QR codes",
		Long: `qrscan reads frames from a video file, a camera or a directory of images,
decodes the QR codes in every frame and reports each distinct code once.

Each frame can be pre-processed by several named methods (identity, grayscale,
invert, contrast, sharpen) and is upscaled before decoding to help with small
codes. Detections are logged as they happen, optionally pushed to WebSocket
subscribers, and summarized in a report at the end of the run.

Examples:
  qrscan scan file input.mp4
  qrscan scan camera --device 0 --display
  qrscan scan images ./frames --methods identity,invert --format json
  qrscan methods
  qrscan config init`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetVersionTemplate("qrscan {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $XDG_CONFIG_HOME/qrscan, /etc/qrscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")

	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.file", pf.Lookup("log-file"))

	rootCmd.AddCommand(
		newScanCommand(a),
		newMethodsCommand(a),
		newConfigCommand(a),
	)
	a.closeLogOnReturn(rootCmd)
	return rootCmd, a
}

// closeLogOnReturn wraps every RunE so the log file is closed whether the
// command succeeds or fails. cobra skips post-run hooks on error.
func (a *app) closeLogOnReturn(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		a.closeLogOnReturn(c)
	}
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			defer a.teardown()
			return run(c, args)
		}
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		d := config.DefaultConfig()
		a.cfg = &d
	} else {
		cfg, err := config.NewLoaderWithViper(a.v).Load(a.cfgFile)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		a.cfg = cfg
	}

	a.runID = uuid.NewString()
	a.logger, a.logCloser = newLogger(a.cfg, cmd.ErrOrStderr())
	a.logger = a.logger.With("run_id", a.runID)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

// newLogger builds the JSON logger. Logs go to stderr unless log.file is
// set, in which case they go to a rotating file.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer) {
	var w io.Writer = stderr
	var closer io.Closer
	if cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
		w, closer = lj, lj
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel(cfg)})), closer
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
