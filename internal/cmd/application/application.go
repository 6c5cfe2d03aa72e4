// Package application provides the application interface for undrdg commands.
//
// Commands accept this interface rather than the concrete App type, so that
// they can be tested with Mock.
package application

import (
	"time"

	"github.com/rs/zerolog"
)

// Application provides what commands need from the application.
// The App struct from cmd/undrdg/app implements this interface.
//
// All methods must be safe for concurrent access.
type Application interface {
	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json or yaml).
	// An empty string selects the format from the terminal.
	OutputFormat() string

	// Quiet reports whether human-oriented output (progress bars, banners)
	// must be suppressed.
	Quiet() bool

	// Workers returns the default number of concurrent workers, 0 selects
	// the number of CPUs.
	Workers() int

	// DebouncePeriod returns the interval between index writes.
	DebouncePeriod() time.Duration

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
