package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/errors"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the process exit code.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.RootCmd.SetArgs(args)
	if err := cmd.Execute(ctx); err != nil {
		errors.Report(errors.NewDefaultCLIHandler(), err)
		return 1
	}
	return 0
}
