package application

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value.
//
// Example Usage:
//
//	mock := &application.Mock{
//	    OutputFormatFunc: func() string { return "json" },
//	}
//	cmd := verify.NewCommand(mock)
type Mock struct {
	LoggerFunc         func() *zerolog.Logger
	OutputFormatFunc   func() string
	QuietFunc          func() bool
	WorkersFunc        func() int
	DebouncePeriodFunc func() time.Duration
	VersionFunc        func() string
	CommitFunc         func() string
	DateFunc           func() string
	BuiltByFunc        func() string
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	return logging.NewNopLogger()
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Quiet returns the mock function result or true, which keeps progress
// bars out of test output.
func (m *Mock) Quiet() bool {
	if m.QuietFunc != nil {
		return m.QuietFunc()
	}
	return true
}

// Workers returns the mock function result or 2.
func (m *Mock) Workers() int {
	if m.WorkersFunc != nil {
		return m.WorkersFunc()
	}
	return 2
}

// DebouncePeriod returns the mock function result or the default period.
func (m *Mock) DebouncePeriod() time.Duration {
	if m.DebouncePeriodFunc != nil {
		return m.DebouncePeriodFunc()
	}
	return constants.DebouncePeriod
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ Application = (*Mock)(nil)
