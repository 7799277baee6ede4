// Package tui runs the watch dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cristianoliveira/dashsync/internal/tui/state"
)

// Run shows the dashboard until the user quits or ctx is cancelled.
// Terminal focus events nudge both synchronizers to reconnect.
func Run(ctx context.Context, d state.Dashboard, n state.Notifications, bus state.Refresher, opts ...tea.ProgramOption) error {
	model := state.NewModel(ctx, d, n, bus)
	defer model.Close()

	opts = append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	}, opts...)
	p := tea.NewProgram(model, opts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
