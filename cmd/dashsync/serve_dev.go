package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/app"
	"github.com/cristianoliveira/dashsync/internal/logging"
)

type serveDevClient interface {
	Execute(ctx context.Context, opts app.ServeDevOptions) error
}

// NewServeDevCmd creates the serve-dev command with explicit dependencies.
func NewServeDevCmd(client serveDevClient) *cobra.Command {
	if client == nil {
		panic("NewServeDevCmd: client dependency cannot be nil")
	}
	var (
		addr      string
		dbPath    string
		heartbeat time.Duration
	)

	serveCmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run a local dashboard API server",
		Long: `Run a local dashboard API backed by SQLite.

The server exposes the REST endpoints and both event streams so the other
commands can be tried without the real backend.

USAGE:
    dashsync serve-dev [OPTIONS]

OPTIONS:
    --addr <addr>         Listen address (default devserver_addr)
    --db <path>           SQLite database path (default devserver_db_path)
    --heartbeat <dur>     Stream heartbeat interval (default heartbeat_interval)
    -h, --help            Show this help`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			opts := app.ServeDevOptionsFromConfig()
			flags := c.Flags()
			if flags.Changed("addr") {
				opts.Addr = addr
			}
			if flags.Changed("db") {
				opts.DBPath = dbPath
			}
			if flags.Changed("heartbeat") {
				opts.Heartbeat = heartbeat
			}
			opts.Logger = logging.GetGlobal()
			return client.Execute(c.Context(), opts)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	serveCmd.Flags().DurationVar(&heartbeat, "heartbeat", 0, "Stream heartbeat interval")
	return serveCmd
}

func init() {
	cmd.RootCmd.AddCommand(NewServeDevCmd(app.NewServeDevUseCase()))
}
