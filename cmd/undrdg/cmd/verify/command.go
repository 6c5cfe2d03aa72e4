// Package verify implements the verify command.
package verify

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/output"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/table"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
	"github.com/neuromorphicsystems/undrdg/pkg/verify"
)

// ErrIssues is returned when the dataset has issues, after the report is printed.
var ErrIssues = errors.New("dataset verification failed")

// NewCommand creates the verify command.
func NewCommand(app application.Application) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "verify <dataset-dir>",
		Short: "Check a dataset against its indexes",
		Long: `Verify walks a UNDR dataset and checks that every indexed directory and
file exists, that every file decompresses to the size and hash listed in
its index, and that typed files contain whole records. Files that no index
lists are reported as well.

The command exits with a non-zero status when any issue is found.`,
		Example: `  undrdg verify datasets/nmnist
  undrdg verify datasets/dvs09 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers == 0 {
				workers = app.Workers()
			}
			return Execute(cmd.Context(), app, args[0], workers, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of files checked concurrently (default: config)")
	return cmd
}

// Execute verifies root and prints the report.
func Execute(ctx context.Context, app application.Application, root string, workers int, stdout io.Writer) error {
	ctx = logging.WithLogger(ctx, app.Logger())
	report, err := verify.Tree(ctx, root, verify.WithWorkers(workers))
	if err != nil {
		return err
	}
	format := output.DetectFormat(app.OutputFormat())
	if err := output.Print(stdout, format, report,
		table.ReportToTableData(report),
		table.ReportTotalsToTableData(report),
	); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d issues in %s", ErrIssues, len(report.Issues), root)
	}
	return nil
}
