// Package version implements the version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/output"
)

// Info is the version information printed by the command.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	BuiltBy   string `json:"built_by" yaml:"built_by"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// NewCommand creates the version command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := Info{
				Version:   app.Version(),
				Commit:    app.Commit(),
				Date:      app.Date(),
				BuiltBy:   app.BuiltBy(),
				GoVersion: runtime.Version(),
			}
			// Plain text unless a structured format was requested.
			format := output.Format(app.OutputFormat())
			if format == output.FormatJSON || format == output.FormatYAML {
				return output.Print(cmd.OutOrStdout(), format, info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "undrdg %s\n", info.Version)
			fmt.Fprintf(w, "  commit:   %s\n", info.Commit)
			fmt.Fprintf(w, "  built:    %s\n", info.Date)
			fmt.Fprintf(w, "  built by: %s\n", info.BuiltBy)
			fmt.Fprintf(w, "  go:       %s\n", info.GoVersion)
			return nil
		},
	}
}
