package main

import (
	"github.com/spf13/cobra"

	"github.com/cristianoliveira/dashsync/cmd"
	"github.com/cristianoliveira/dashsync/internal/app"
	"github.com/cristianoliveira/dashsync/internal/domain"
)

// NewProjectCmd creates the project command group.
func NewProjectCmd(runtime runtimeFunc) *cobra.Command {
	if runtime == nil {
		panic("NewProjectCmd: runtime dependency cannot be nil")
	}

	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create projects and change their status",
		Args:  cobra.NoArgs,
	}
	projectCmd.AddCommand(
		newProjectAddCmd(runtime),
		newProjectStatusCmd(runtime),
		newProjectCompleteCmd(runtime),
	)
	return projectCmd
}

func projectUseCase(runtime runtimeFunc) (*app.ProjectUseCase, error) {
	rt, err := runtime()
	if err != nil {
		return nil, err
	}
	return app.NewProjectUseCase(rt.Client, rt.Bus), nil
}

func newProjectAddCmd(runtime runtimeFunc) *cobra.Command {
	var p domain.NewProject

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a project",
		Long: `Create a project in the planning status.

USAGE:
    dashsync project add --name <name> --client <client> [OPTIONS]

OPTIONS:
    --name <name>        Project name (required)
    --client <client>    Client name (required)
    --budget <amount>    Budget in dollars
    --deadline <date>    Deadline as YYYY-MM-DD
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			uc, err := projectUseCase(runtime)
			if err != nil {
				return err
			}
			_, err = uc.Add(c.Context(), p)
			return err
		},
	}
	flags := addCmd.Flags()
	flags.StringVar(&p.Name, "name", "", "Project name")
	flags.StringVar(&p.ClientName, "client", "", "Client name")
	flags.Float64Var(&p.Budget, "budget", 0, "Budget in dollars")
	flags.StringVar(&p.Deadline, "deadline", "", "Deadline as YYYY-MM-DD")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("client")
	return addCmd
}

func newProjectStatusCmd(runtime runtimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <planning|active|on_hold|completed>",
		Short: "Change the status of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			status, err := domain.ParseProjectStatus(args[1])
			if err != nil {
				return err
			}
			uc, err := projectUseCase(runtime)
			if err != nil {
				return err
			}
			_, err = uc.SetStatus(c.Context(), args[0], status)
			return err
		},
	}
}

func newProjectCompleteCmd(runtime runtimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a project completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			uc, err := projectUseCase(runtime)
			if err != nil {
				return err
			}
			_, err = uc.Complete(c.Context(), args[0])
			return err
		},
	}
}

func init() {
	cmd.RootCmd.AddCommand(NewProjectCmd(defaultRuntime))
}
