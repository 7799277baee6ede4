package main

import (
	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/app"
)

// NewStatsCmd creates the stats command with explicit dependencies.
func NewStatsCmd(runtime runtimeFunc) *cobra.Command {
	if runtime == nil {
		panic("NewStatsCmd: runtime dependency cannot be nil")
	}
	var asJSON bool

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard once",
		Long: `Fetch the dashboard aggregates and recent projects once and print them.

USAGE:
    dashsync stats [OPTIONS]

OPTIONS:
    --json       Print the raw dashboard payload as JSON
    -h, --help   Show this help`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := runtime()
			if err != nil {
				return err
			}
			return app.NewStatsUseCase(rt.Client).Execute(c.Context(), app.StatsOptions{
				JSON:   asJSON,
				Output: c.OutOrStdout(),
			})
		},
	}
	statsCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return statsCmd
}

func init() {
	cmd.RootCmd.AddCommand(NewStatsCmd(defaultRuntime))
}
