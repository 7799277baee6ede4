package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/app"
	"github.com/cristianoliveira/dashsync/internal/format"
	"github.com/cristianoliveira/dashsync/internal/search"
)

// NewNotificationsCmd creates the notifications command group.
func NewNotificationsCmd(runtime runtimeFunc) *cobra.Command {
	if runtime == nil {
		panic("NewNotificationsCmd: runtime dependency cannot be nil")
	}

	notificationsCmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "n"},
		Short:   "List, read and delete notifications",
		Args:    cobra.NoArgs,
	}
	notificationsCmd.AddCommand(
		newListCmd(runtime),
		newReadCmd(runtime),
		newDeleteCmd(runtime),
	)
	return notificationsCmd
}

func newListCmd(runtime runtimeFunc) *cobra.Command {
	var opts app.ListOptions

	formats := make([]string, len(format.Types))
	for i, ft := range format.Types {
		formats[i] = string(ft)
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Long: fmt.Sprintf(`List notifications, newest first.

USAGE:
    dashsync notifications list [OPTIONS]

OPTIONS:
    --format <format>  Output format (%s)
    --unread           Show only unread notifications
    --search <query>   Keep notifications matching the query
    --search-mode <m>  Query mode (%s)
    -h, --help         Show this help

In token mode every word must match the title, message or client.
"read", "unread" and "type:<type>" filter by state and type.`, strings.Join(formats, ", "), strings.Join(search.ProviderNames, ", ")),
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := runtime()
			if err != nil {
				return err
			}
			opts.Output = c.OutOrStdout()
			return app.NewListUseCase(rt.Client).Execute(c.Context(), opts)
		},
	}
	listCmd.Flags().StringVar(&opts.Format, "format", string(format.FormatterTypeSimple), "Output format")
	listCmd.Flags().BoolVar(&opts.UnreadOnly, "unread", false, "Show only unread notifications")
	listCmd.Flags().StringVar(&opts.Search, "search", "", "Keep notifications matching the query")
	listCmd.Flags().StringVar(&opts.SearchMode, "search-mode", "token", "Query mode")
	return listCmd
}

func newReadCmd(runtime runtimeFunc) *cobra.Command {
	var all bool

	readCmd := &cobra.Command{
		Use:   "read [<id>...]",
		Short: "Mark notifications as read",
		Long: `Mark notifications as read by ID, or all of them with --all.

USAGE:
    dashsync notifications read <id>...
    dashsync notifications read --all`,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := runtime()
			if err != nil {
				return err
			}
			return app.NewMarkReadUseCase(rt.Client).Execute(c.Context(), args, all)
		},
	}
	readCmd.Flags().BoolVar(&all, "all", false, "Mark every notification as read")
	return readCmd
}

func newDeleteCmd(runtime runtimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete notifications",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := runtime()
			if err != nil {
				return err
			}
			return app.NewDeleteUseCase(rt.Client).Execute(c.Context(), args...)
		},
	}
}

func init() {
	cmd.RootCmd.AddCommand(NewNotificationsCmd(defaultRuntime))
}
