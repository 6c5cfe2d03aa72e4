// Package convert implements the convert command.
package convert

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/output"
	"github.com/neuromorphicsystems/undrdg/internal/cmd/table"
	dataset "github.com/neuromorphicsystems/undrdg/pkg/convert"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
	"github.com/neuromorphicsystems/undrdg/pkg/recipe"
	"github.com/neuromorphicsystems/undrdg/pkg/tree"
)

// Flags holds the convert flags.
type Flags struct {
	Workers int
	DryRun  bool
	Target  string
}

// NewCommand creates the convert command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:   "convert <recipe.yaml>",
		Short: "Convert a dataset described by a recipe",
		Long: `Convert walks the source tree of a recipe, decodes every file whose
extension has a format and writes the UNDR dataset to the recipe target.

Files without a format are copied, skipped or rejected depending on the
recipe "unmatched" policy. Indexes are written periodically during the
conversion and always flushed before the command returns, including when
it is interrupted.`,
		Example: `  undrdg convert recipes/nmnist.yaml
  undrdg convert recipes/dvs09.yaml --workers 4
  undrdg convert recipes/dvsflow16.yaml --dry-run -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Execute(cmd.Context(), app, args[0], flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVarP(&flags.Workers, "workers", "w", 0, "number of files converted concurrently (default: recipe, then config)")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "list what would be done without writing anything")
	cmd.Flags().StringVar(&flags.Target, "target", "", "override the recipe target directory")
	return cmd
}

// Execute runs the recipe at path and prints the summary to stdout.
// Progress is drawn on stderr when it is a terminal.
func Execute(ctx context.Context, app application.Application, path string, flags *Flags, stdout, stderr io.Writer) error {
	r, err := recipe.Load(path)
	if err != nil {
		return err
	}
	if flags.Target != "" {
		if r.Target, err = filepath.Abs(flags.Target); err != nil {
			return err
		}
	}
	format := output.DetectFormat(app.OutputFormat())

	if flags.DryRun {
		planned, err := dataset.Plan(r)
		if err != nil {
			return err
		}
		return output.Print(stdout, format, planned, table.PlanToTableData(planned))
	}

	opts := []tree.Option{tree.WithDebouncePeriod(app.DebouncePeriod())}
	switch {
	case flags.Workers > 0:
		opts = append(opts, tree.WithWorkers(flags.Workers))
	case r.Workers == 0:
		opts = append(opts, tree.WithWorkers(app.Workers()))
	}

	bar := newProgress(stderr, !app.Quiet())
	opts = append(opts, tree.WithProgress(bar.step))

	ctx = logging.WithLogger(ctx, app.Logger())
	summary, err := dataset.Run(ctx, r, opts...)
	bar.finish()
	if err != nil {
		if summary != nil {
			app.Logger().Warn().
				Int("converted", summary.Converted).
				Int("copied", summary.Copied).
				Msg("Conversion stopped; indexes list the files written so far")
		}
		return err
	}
	return output.Print(stdout, format, summary, table.SummaryToTableData(summary))
}

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && output.IsTerminal(f)
}
