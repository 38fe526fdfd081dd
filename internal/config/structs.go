//nolint:lll
package config

// Config represents the complete configuration for qrscan. It is loaded from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan" json:"scan"`
	Source  SourceConfig  `mapstructure:"source" yaml:"source" json:"source"`
	Display DisplayConfig `mapstructure:"display" yaml:"display" json:"display"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
}

// LogConfig controls the log destination. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// ScanConfig contains frame processing settings.
type ScanConfig struct {
	ZoomFactor       int      `mapstructure:"zoom_factor" yaml:"zoom_factor" json:"zoom_factor"`
	Methods          []string `mapstructure:"methods" yaml:"methods" json:"methods"`
	Formats          []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder        bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	OverlayColor     string   `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	OverlayThickness int      `mapstructure:"overlay_thickness" yaml:"overlay_thickness" json:"overlay_thickness"`
}

// SourceConfig selects the video source.
type SourceConfig struct {
	Mode   string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	Path   string  `mapstructure:"path" yaml:"path" json:"path"`
	Device int     `mapstructure:"device" yaml:"device" json:"device"`
	FPS    float64 `mapstructure:"fps" yaml:"fps" json:"fps"`
}

// DisplayConfig controls the preview window.
type DisplayConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Title   string `mapstructure:"title" yaml:"title" json:"title"`
	StopKey string `mapstructure:"stop_key" yaml:"stop_key" json:"stop_key"`
}

// OutputConfig contains report settings. An empty File writes to stdout.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains live feed server settings.
type ServerConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Host       string `mapstructure:"host" yaml:"host" json:"host"`
	Port       int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
}
