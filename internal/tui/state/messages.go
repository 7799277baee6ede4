package state

import (
	tea "github.com/charmbracelet/bubbletea"
)

// changedMsg is sent when either synchronizer published a new state.
type changedMsg struct{}

// actionDoneMsg reports the outcome of a user action.
type actionDoneMsg struct {
	action string
	err    error
}

// clearStatusMsg clears the status line if nothing newer replaced it.
type clearStatusMsg struct {
	seq int
}

// waitForChange blocks until the next state change.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}
