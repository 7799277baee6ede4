package main

import (
	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/app"
)

// NewFollowCmd creates the follow command with explicit dependencies.
func NewFollowCmd(runtime runtimeFunc) *cobra.Command {
	if runtime == nil {
		panic("NewFollowCmd: runtime dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "follow",
		Short: "Print dashboard and notification changes as they happen",
		Long: `Follow both streams and print one line per change.

Connection changes, dashboard aggregates and new unread notifications are
printed until interrupted. Polling takes over while a stream is down.

USAGE:
    dashsync follow

OPTIONS:
    -h, --help   Show this help`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := runtime()
			if err != nil {
				return err
			}
			uc := app.NewFollowUseCase(rt.Dashboard(), rt.Notifications())
			return uc.Execute(c.Context(), app.FollowOptions{Output: c.OutOrStdout()})
		},
	}
}

func init() {
	cmd.RootCmd.AddCommand(NewFollowCmd(defaultRuntime))
}
