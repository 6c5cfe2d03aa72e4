// Package emoji provides symbol constants for CLI output.
package emoji

// Symbols shared by all commands.
const (
	// Success marks a completed operation or a dataset without issues.
	Success = "✓"

	// Error marks failures and verification issues.
	Error = "✗"

	// Warning marks non-fatal problems, such as corrupted APS or IMU streams.
	Warning = "!"

	// Info marks informational messages (dry runs, summaries).
	Info = "i"

	// Skipped marks source files left out of a conversion.
	Skipped = "-"
)
