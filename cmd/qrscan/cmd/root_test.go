package cmd

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs a fresh command tree in an isolated working directory.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// isolate runs the test from an empty directory with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return dir
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "qrscan", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"scan", "methods", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, _, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "qrscan scan file input.mp4")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "qrscan dev")
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	_, _, err := executeCommand(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    slog.Level
	}{
		{"debug", false, slog.LevelDebug},
		{"info", false, slog.LevelInfo},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"", false, slog.LevelInfo},
		{"error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		cfg.LogLevel = tt.level
		cfg.Verbose = tt.verbose
		assert.Equal(t, tt.want, logLevel(&cfg), "level=%q verbose=%v", tt.level, tt.verbose)
	}
}

func TestMethodsCommand(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "methods")
	require.NoError(t, err)
	assert.Equal(t, "* identity\n  grayscale\n  invert\n  contrast\n  sharpen\n", out)

	t.Setenv("QRSCAN_SCAN_METHODS", "invert,sharpen")
	out, _, err = executeCommand(t, "methods")
	require.NoError(t, err)
	assert.Equal(t, "  identity\n  grayscale\n* invert\n  contrast\n* sharpen\n", out)
}
