// Package cmd holds the root command of dashsync. Subcommands register
// themselves from the binary package.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/config"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/version"
)

// Flags shared by every command. They override configuration when set.
var (
	serverURL string
	apiToken  string
	debug     bool
	quiet     bool
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "dashsync",
	Short: "Keep a freelance dashboard in sync from the terminal.",
	Long: `Keep a freelance dashboard in sync from the terminal.

dashsync follows the dashboard and notification streams of the server,
falls back to polling while a stream is down and shows everything in an
interactive view.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logging.ShutdownGlobal()
	},
}

// Execute runs the root command with ctx.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	RootCmd.Version = version.String()
	RootCmd.CompletionOptions.HiddenDefaultCmd = true

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", "", "dashboard API base URL (overrides server_url)")
	flags.StringVar(&apiToken, "token", "", "API bearer token (overrides api_token)")
	flags.BoolVar(&debug, "debug", false, "enable debug output and logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "only log errors")
}

// setup loads configuration, applies flag overrides and starts logging.
func setup(cmd *cobra.Command, _ []string) error {
	config.Load()

	flags := cmd.Flags()
	if flags.Changed("server") {
		config.Set("server_url", serverURL)
	}
	if flags.Changed("token") {
		config.Set("api_token", apiToken)
	}
	if flags.Changed("debug") {
		config.Set("debug", fmt.Sprint(debug))
	}
	if flags.Changed("quiet") {
		config.Set("quiet", fmt.Sprint(quiet))
	}
	colors.SetDebug(config.GetBool("debug", false))

	if err := logging.InitGlobal(); err != nil {
		colors.Warning(fmt.Sprintf("logging disabled: %v", err))
	}
	logging.Debug("command started", "command", cmd.CommandPath())
	return nil
}
