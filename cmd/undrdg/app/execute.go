package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/output"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
)

// Execute runs the undrdg CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	config := a.Config()
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:     "undrdg",
		Short:   "Convert neuromorphic datasets to UNDR",
		Version: a.version,
		Long: `undrdg converts event-camera datasets (AER-DAT 1.0, AER-DAT 2.0, N-MNIST)
into UNDR datasets: brotli-compressed files of fixed-size records described
by a "-index.json" file in every directory.

Conversions are described by YAML recipes listing the source tree, the
renaming rules, the parser of each file extension and the metadata to
attach to the generated files.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupCommand(cmd, flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default is $HOME/.undrdg.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&flags.format, "format", "o", config.Format, "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("undrdg {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

type rootFlags struct {
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
	format     string
	logLevel   string
}

// setupCommand is called before any command runs: it reloads the config
// file given with --config, applies the global flags and attaches the
// logger to the command context.
func (a *App) setupCommand(cmd *cobra.Command, flags *rootFlags) error {
	if _, err := output.ParseFormat(flags.format); err != nil {
		return err
	}

	config := *a.Config()
	if flags.configFile != "" {
		loaded, err := LoadConfig(flags.configFile)
		if err != nil {
			return fmt.Errorf("loading %s: %w", flags.configFile, err)
		}
		config = *loaded
	}
	config.UpdateFromFlags(flags.verbose, flags.quiet, flags.noColor, flags.format, flags.logLevel)
	a.setConfig(&config)

	logger := a.Logger()
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	logger.Debug().
		Str("command", cmd.CommandPath()).
		Str("config", config.ConfigFile).
		Int("workers", config.Workers).
		Dur("debounce_period", config.DebouncePeriod).
		Msg("Configuration loaded")
	return nil
}

// ExitOnError prints an error and returns the exit status: 0 for nil, 1 otherwise.
func ExitOnError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	_, _ = io.WriteString(w, "Error: "+err.Error()+"\n")
	return 1
}
