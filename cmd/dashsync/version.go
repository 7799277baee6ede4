package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/version"
)

// NewVersionCmd creates the version command with explicit dependencies.
func NewVersionCmd(versionFn func() string) *cobra.Command {
	if versionFn == nil {
		panic("NewVersionCmd: version dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show the current version of dashsync.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			fmt.Fprintf(c.OutOrStdout(), "dashsync version %s\n", versionFn())
			return nil
		},
	}
}

func init() {
	cmd.RootCmd.AddCommand(NewVersionCmd(version.String))
}
