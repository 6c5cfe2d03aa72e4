// Package main provides the entry point for the undrdg CLI tool.
package main

import (
	"context"
	"os"

	"github.com/neuromorphicsystems/undrdg/cmd/undrdg/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		return app.ExitOnError(os.Stderr, err)
	}

	// Interrupts cancel the conversion; indexes are flushed before exiting.
	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	return app.ExitOnError(os.Stderr, application.Execute(ctx, os.Args[1:]))
}
