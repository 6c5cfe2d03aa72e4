package app

import (
	"github.com/spf13/cobra"

	"github.com/neuromorphicsystems/undrdg/cmd/undrdg/cmd/convert"
	"github.com/neuromorphicsystems/undrdg/cmd/undrdg/cmd/inspect"
	"github.com/neuromorphicsystems/undrdg/cmd/undrdg/cmd/verify"
	"github.com/neuromorphicsystems/undrdg/cmd/undrdg/cmd/version"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(convert.NewCommand(a))
	rootCmd.AddCommand(verify.NewCommand(a))
	rootCmd.AddCommand(inspect.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))
}
