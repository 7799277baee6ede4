package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/colors"
)

// commandOrder is the order of commands in the help output.
var commandOrder = []string{
	"watch",
	"follow",
	"stats",
	"notifications",
	"project",
	"serve-dev",
	"help",
	"version",
}

// PrintHelp prints the help information for the given root command.
func PrintHelp(root *cobra.Command) {
	printHelp(root, root.OutOrStdout())
}

func printHelp(root *cobra.Command, w io.Writer) {
	var cmdLines []string
	for _, name := range commandOrder {
		var found *cobra.Command
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = c
				break
			}
		}
		if found == nil {
			continue
		}
		cmdLines = append(cmdLines, fmt.Sprintf("    %s%-16s%s %s%s%s", colors.Cyan, found.Name(), colors.Reset, colors.Green, found.Short, colors.Reset))
	}

	versionStr := root.Version
	if versionStr == "" {
		versionStr = "0.0.0"
	}
	headerColor, reset := colors.Blue, colors.Reset

	fmt.Fprintf(w, `%sdashsync v%s%s

%sKeep a freelance dashboard in sync from the terminal.%s

%sUSAGE:%s
    dashsync [COMMAND] [OPTIONS]

%sCOMMANDS:%s
%s

%sOPTIONS:%s
    --server <url>  Dashboard API base URL
    --token <token> API bearer token
    --debug         Enable debug output and logging
    -q, --quiet     Only log errors
    -h, --help      Show help message
`, headerColor, versionStr, reset, colors.Cyan, reset, headerColor, reset, headerColor, reset, strings.Join(cmdLines, "\n"), headerColor, reset)
}

// NewHelpCmd creates the help command.
func NewHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Show this help message",
		Long:  `Show this help message, or the help of one command.`,
		RunE: func(c *cobra.Command, args []string) error {
			root := c.Root()
			if len(args) == 0 {
				PrintHelp(root)
				return nil
			}
			target, _, err := root.Find(args)
			if err != nil || target == nil || target == root {
				PrintHelp(root)
				return nil
			}
			return target.Help()
		},
	}
}

func init() {
	cmd.RootCmd.SetHelpCommand(NewHelpCmd())
}
