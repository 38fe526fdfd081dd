package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/MeKo-Tech/qrscan/internal/server"
	"github.com/MeKo-Tech/qrscan/internal/transform"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	scan := scanner.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Scan: ScanConfig{
			ZoomFactor:       scan.ZoomFactor,
			Methods:          []string{transform.Identity},
			Formats:          []string{barcode.FormatQR.String()},
			OverlayColor:     "#00FF00",
			OverlayThickness: scan.OverlayThickness,
		},
		Source: SourceConfig{
			Mode: string(scanner.ModeFile),
			FPS:  0,
		},
		Display: DisplayConfig{
			Enabled: false,
			Title:   "QR Code Detection",
			StopKey: "q",
		},
		Output: OutputConfig{
			Format: scanner.FormatText,
		},
		Server: ServerConfig{
			Enabled:    false,
			Host:       "localhost",
			Port:       8080,
			CORSOrigin: "*",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := transform.ValidateFactor(c.Scan.ZoomFactor); err != nil {
		return fmt.Errorf("invalid scan.zoom_factor: %w", err)
	}
	if len(c.Scan.Methods) == 0 {
		return errors.New("invalid scan.methods: at least one method is required")
	}
	if _, err := transform.DefaultRegistry().Resolve(c.Scan.Methods); err != nil {
		return fmt.Errorf("invalid scan.methods: %w", err)
	}
	if _, err := barcode.ParseFormats(c.Scan.Formats); err != nil {
		return fmt.Errorf("invalid scan.formats: %w", err)
	}
	if _, err := utils.ParseHexColor(c.Scan.OverlayColor); err != nil {
		return fmt.Errorf("invalid scan.overlay_color: %w", err)
	}
	if c.Scan.OverlayThickness < 1 {
		return fmt.Errorf("invalid scan.overlay_thickness: %d (must be at least 1)", c.Scan.OverlayThickness)
	}

	if c.Source.Mode != "" {
		if _, err := scanner.ParseMode(c.Source.Mode); err != nil {
			return fmt.Errorf("invalid source.mode: %w", err)
		}
	}
	if c.Source.FPS < 0 {
		return fmt.Errorf("invalid source.fps: %g (must not be negative)", c.Source.FPS)
	}
	if c.Source.Device < 0 {
		return fmt.Errorf("invalid source.device: %d (must not be negative)", c.Source.Device)
	}

	if utf8.RuneCountInString(c.Display.StopKey) > 1 {
		return fmt.Errorf("invalid display.stop_key: %q (must be a single character)", c.Display.StopKey)
	}

	if c.Output.Format != "" {
		if err := scanner.ValidateReportFormat(c.Output.Format); err != nil {
			return fmt.Errorf("invalid output.format: %w", err)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("invalid log rotation settings: values must not be negative")
	}

	return nil
}

// ToScannerConfig converts the scan section to the processor configuration.
func (c *Config) ToScannerConfig() (scanner.Config, error) {
	col, err := utils.ParseHexColor(c.Scan.OverlayColor)
	if err != nil {
		return scanner.Config{}, err
	}
	formats, err := barcode.ParseFormats(c.Scan.Formats)
	if err != nil {
		return scanner.Config{}, err
	}
	return scanner.Config{
		ZoomFactor:       c.Scan.ZoomFactor,
		Methods:          append([]string(nil), c.Scan.Methods...),
		OverlayColor:     col,
		OverlayThickness: c.Scan.OverlayThickness,
		Barcode:          barcode.Options{Formats: formats, TryHarder: c.Scan.TryHarder},
	}, nil
}

// ToServerConfig converts the server section.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:       c.Server.Host,
		Port:       c.Server.Port,
		CORSOrigin: c.Server.CORSOrigin,
	}
}
