// Package app provides the application context and dependency management
// for the undrdg CLI: configuration, logging and command wiring.
package app

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

// App represents the undrdg application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	stdout io.Writer
	stderr io.Writer

	mu     sync.RWMutex
	config *Config
	logger *zerolog.Logger
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and the default config
// file; options may replace it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, errors.WrapResource("load", "config", "", err)
		}
		app.config = config
	}
	if app.logger == nil {
		logger := NewLogger(app.config, app.stderr)
		app.logger = &logger
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// OutputFormat returns the --format value, empty to detect it.
func (a *App) OutputFormat() string {
	return a.Config().Format
}

// Quiet reports whether --quiet is set.
func (a *App) Quiet() bool {
	return a.Config().Quiet
}

// Workers returns the configured number of workers.
func (a *App) Workers() int {
	return a.Config().Workers
}

// DebouncePeriod returns the configured interval between index writes.
func (a *App) DebouncePeriod() time.Duration {
	return a.Config().DebouncePeriod
}

// setConfig replaces the configuration and rebuilds the logger.
func (a *App) setConfig(config *Config) {
	logger := NewLogger(config, a.stderr)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = config
	a.logger = &logger
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if err := config.Validate(); err != nil {
			return err
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput redirects the command output streams (useful for testing).
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) error {
		a.stdout = stdout
		a.stderr = stderr
		return nil
	}
}

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)
