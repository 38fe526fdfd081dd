package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "qrscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QRSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound
// with viper.BindPFlag take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load resolves configuration from configFile (or the search paths when
// empty), environment variables and defaults, then validates it.
func (l *Loader) Load(configFile string) (*Config, error) {
	cfg, err := l.LoadWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()

		if err := l.v.ReadInConfig(); err != nil {
			// A missing file is fine: defaults and env vars still apply.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range SearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps QRSCAN_SCAN_ZOOM_FACTOR to scan.zoom_factor.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}

// setDefaults registers every key so env vars resolve during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("log.file", d.Log.File)
	l.v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", d.Log.MaxBackups)
	l.v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	l.v.SetDefault("log.compress", d.Log.Compress)

	l.v.SetDefault("scan.zoom_factor", d.Scan.ZoomFactor)
	l.v.SetDefault("scan.methods", d.Scan.Methods)
	l.v.SetDefault("scan.formats", d.Scan.Formats)
	l.v.SetDefault("scan.try_harder", d.Scan.TryHarder)
	l.v.SetDefault("scan.overlay_color", d.Scan.OverlayColor)
	l.v.SetDefault("scan.overlay_thickness", d.Scan.OverlayThickness)

	l.v.SetDefault("source.mode", d.Source.Mode)
	l.v.SetDefault("source.path", d.Source.Path)
	l.v.SetDefault("source.device", d.Source.Device)
	l.v.SetDefault("source.fps", d.Source.FPS)

	l.v.SetDefault("display.enabled", d.Display.Enabled)
	l.v.SetDefault("display.title", d.Display.Title)
	l.v.SetDefault("display.stop_key", d.Display.StopKey)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("server.enabled", d.Server.Enabled)
	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
}

// SearchPaths returns the directories searched for qrscan.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && configDir != "" {
		paths = append(paths, filepath.Join(configDir, "qrscan"))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", "qrscan"))
	}

	return append(paths, "/etc/qrscan")
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	d := DefaultConfig()
	data, err := Marshal(&d)
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil { //nolint:gosec // config files are meant to be readable
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
