package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastArgs   []string
	LastOutput string
	LastStderr string
	LastError  error

	// Test environment
	WorkingDir string
	TempDir    string
	FramesDir  string
	frameCount int

	// Feed server state
	Feed               *server.Feed
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string

	savedEnv map[string]*string
}

// NewTestContext creates a scenario context rooted in a fresh temporary
// directory. HOME and XDG_CONFIG_HOME point into it so no user
// configuration leaks into the CLI.
func NewTestContext() (*TestContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	tmp, err := os.MkdirTemp("", "qrscan-cli-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	tc := &TestContext{
		WorkingDir: wd,
		TempDir:    tmp,
		FramesDir:  filepath.Join(tmp, "frames"),
		savedEnv:   make(map[string]*string),
	}
	for name, value := range map[string]string{
		"HOME":            filepath.Join(tmp, "home"),
		"XDG_CONFIG_HOME": filepath.Join(tmp, "xdg"),
	} {
		if err := tc.setEnv(name, value); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

func (tc *TestContext) setEnv(name, value string) error {
	if _, saved := tc.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			tc.savedEnv[name] = &old
		} else {
			tc.savedEnv[name] = nil
		}
	}
	return os.Setenv(name, value)
}

// Cleanup restores the environment and removes scenario artifacts.
func (tc *TestContext) Cleanup() error {
	if tc.HTTPServer != nil {
		tc.HTTPServer.Close()
		tc.HTTPServer = nil
	}

	var errs []error
	if err := os.Chdir(tc.WorkingDir); err != nil {
		errs = append(errs, err)
	}
	for name, old := range tc.savedEnv {
		if old == nil {
			errs = append(errs, os.Unsetenv(name))
		} else {
			errs = append(errs, os.Setenv(name, *old))
		}
	}
	errs = append(errs, os.RemoveAll(tc.TempDir))
	return errors.Join(errs...)
}
