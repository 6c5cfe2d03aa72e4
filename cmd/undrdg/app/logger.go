package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/neuromorphicsystems/undrdg/pkg/logging"
)

var validLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NewLogger creates a configured logger based on the application configuration.
// Log level precedence (highest to lowest):
//  1. --log-level flag, or LOG_LEVEL
//  2. -q/--quiet flag (shortcut for warn)
//  3. -v/--verbose flag (shortcut for debug)
//  4. Default (info)
//
// Warnings about the configuration are written to stderr.
func NewLogger(config *Config, stderr io.Writer) zerolog.Logger {
	level := determineLogLevel(config, stderr)
	return logging.NewLoggerFromConfig(&logging.Config{
		Level:      level,
		Format:     config.LogFormat,
		Output:     config.LogOutput,
		TimeFormat: "kitchen",
		NoColor:    config.NoColor,
		AddCaller:  level == "debug" || level == "trace",
	})
}

func determineLogLevel(config *Config, stderr io.Writer) string {
	if config.LogLevel != "" {
		if validLevels[config.LogLevel] {
			return config.LogLevel
		}
		fmt.Fprintf(stderr, "Warning: invalid log level %q, using \"info\"\n", config.LogLevel)
		return "info"
	}
	if config.Verbose && config.Quiet {
		fmt.Fprintf(stderr, "Warning: both --verbose and --quiet specified, using --quiet\n")
		return "warn"
	}
	if config.Quiet {
		return "warn"
	}
	if config.Verbose {
		return "debug"
	}
	return "info"
}
