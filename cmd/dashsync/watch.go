package main

import (
	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/app"
)

// NewWatchCmd creates the watch command with explicit dependencies.
func NewWatchCmd(runtime runtimeFunc) *cobra.Command {
	if runtime == nil {
		panic("NewWatchCmd: runtime dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "watch",
		Short: "Open the interactive dashboard",
		Long: `Open the interactive dashboard.

KEYS:
    j/k, up/down   Move the selection
    enter, m       Mark the selected notification as read
    a              Mark all notifications as read
    d              Delete the selected notification
    r              Refresh both views
    c              Reconnect the streams
    ?              Toggle the full help
    q, ctrl+c      Quit

Metrics are served on metrics_addr while the dashboard is open.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := runtime()
			if err != nil {
				return err
			}
			uc := app.NewWatchUseCase(rt.Dashboard(), rt.Notifications(), rt.Bus)
			return uc.Execute(c.Context(), app.WatchOptions{ServeMetrics: rt.ServeMetrics})
		},
	}
}

func init() {
	cmd.RootCmd.AddCommand(NewWatchCmd(defaultRuntime))
}
