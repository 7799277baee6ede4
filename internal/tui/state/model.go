// Package state holds the bubbletea model of the watch dashboard.
package state

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cristianoliveira/dashsync/internal/dashboard"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/errors"
	"github.com/cristianoliveira/dashsync/internal/notifications"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
	"github.com/cristianoliveira/dashsync/internal/tui/render"
)

const (
	defaultViewportWidth  = 80
	defaultViewportHeight = 24
	// lines taken by everything except the notification rows
	reservedLines      = 12
	errorClearDuration = 5 * time.Second
	actionTimeout      = 15 * time.Second
)

// Dashboard is the part of the dashboard synchronizer the model uses.
type Dashboard interface {
	State() domain.DashboardState
	Subscribe(fn dashboard.Observer) func()
	Nudge() bool
	Polling() bool
	LastHeartbeat() time.Time
}

// Notifications is the part of the notification synchronizer the model uses.
type Notifications interface {
	State() domain.NotificationState
	Subscribe(fn notifications.Observer) func()
	MarkAsRead(ctx context.Context, ids ...string) error
	Delete(ctx context.Context, id string) error
	IsDeleting(id string) bool
	Nudge() bool
}

// Refresher asks every subscribed synchronizer to refetch.
// *refreshbus.Registry implements it.
type Refresher interface {
	Trigger(ctx context.Context, reason refreshbus.Reason) error
}

// Model represents the TUI model for bubbletea.
type Model struct {
	ctx           context.Context
	dashboard     Dashboard
	notifications Notifications
	bus           Refresher
	changes       chan struct{}
	unsubscribe   []func()

	dash  domain.DashboardState
	notif domain.NotificationState

	cursor int
	offset int
	width  int
	height int

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	errorHandler      *errors.TUIHandler
	statusMessage     string
	statusMessageType errors.MessageType
	statusSeq         int

	now func() time.Time
}

// NewModel creates the model and subscribes it to both synchronizers.
// The refresh key goes through bus. Close releases the subscriptions.
func NewModel(ctx context.Context, d Dashboard, n Notifications, bus Refresher) *Model {
	m := &Model{
		ctx:           ctx,
		dashboard:     d,
		notifications: n,
		bus:           bus,
		changes:       make(chan struct{}, 1),
		keys:          DefaultKeyMap(),
		help:          help.New(),
		spinner:       spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		now:           time.Now,
	}
	m.errorHandler = errors.NewTUIHandler(func(msg errors.Message) {
		m.statusMessage = msg.Text
		m.statusMessageType = msg.Type
		m.statusSeq++
	})
	m.unsubscribe = append(m.unsubscribe,
		d.Subscribe(func(domain.DashboardState) { m.signal() }),
		n.Subscribe(func(domain.NotificationState) { m.signal() }),
	)
	m.sync()
	return m
}

// signal coalesces change notifications; the model reads the latest state
// when it handles the message.
func (m *Model) signal() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// Close unsubscribes from both synchronizers.
func (m *Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
	m.unsubscribe = nil
}

// Init initializes the TUI model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), m.spinner.Tick)
}

// Update handles messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ensureCursorVisible()
		return m, nil
	case tea.FocusMsg:
		return m, m.reconnect()
	case changedMsg:
		m.sync()
		return m, waitForChange(m.changes)
	case actionDoneMsg:
		return m, m.handleActionDone(msg)
	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.statusMessage = ""
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.Reconnect):
		return m, m.reconnect()
	case key.Matches(msg, m.keys.MarkAllRead):
		if m.notif.UnreadCount == 0 {
			return m, nil
		}
		return m, m.action("mark all read", func(ctx context.Context) error {
			return m.notifications.MarkAsRead(ctx)
		})
	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.selected()
		if !ok || !n.Unread {
			return m, nil
		}
		return m, m.action("mark read", func(ctx context.Context) error {
			return m.notifications.MarkAsRead(ctx, n.ID)
		})
	case key.Matches(msg, m.keys.Delete):
		n, ok := m.selected()
		// the row may still be on screen until the hidden list arrives
		if !ok || m.notifications.IsDeleting(n.ID) {
			return m, nil
		}
		return m, m.action("delete", func(ctx context.Context) error {
			return m.notifications.Delete(ctx, n.ID)
		})
	}
	return m, nil
}

// action runs fn off the update loop. The synchronizers apply optimistic
// changes themselves, so the view updates through changedMsg before the
// request completes.
func (m *Model) action(name string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, actionTimeout)
		defer cancel()
		return actionDoneMsg{action: name, err: fn(ctx)}
	}
}

func (m *Model) refresh() tea.Cmd {
	return m.action("refresh", func(ctx context.Context) error {
		return m.bus.Trigger(ctx, refreshbus.ReasonManual)
	})
}

// reconnect nudges both synchronizers back toward their push channels.
func (m *Model) reconnect() tea.Cmd {
	nudged := m.dashboard.Nudge()
	if m.notifications.Nudge() {
		nudged = true
	}
	if !nudged {
		return nil
	}
	m.errorHandler.Info("reconnecting")
	return m.clearStatusAfter()
}

func (m *Model) handleActionDone(msg actionDoneMsg) tea.Cmd {
	switch {
	case stderrors.Is(msg.err, context.Canceled):
		return nil
	case msg.err != nil:
		errors.Report(m.errorHandler, msg.err)
	default:
		m.errorHandler.Success(msg.action + " done")
	}
	return m.clearStatusAfter()
}

func (m *Model) clearStatusAfter() tea.Cmd {
	seq := m.statusSeq
	return tea.Tick(errorClearDuration, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

// sync copies the latest state from both synchronizers.
func (m *Model) sync() {
	var selectedID string
	if n, ok := m.selected(); ok {
		selectedID = n.ID
	}
	m.dash = m.dashboard.State()
	m.notif = m.notifications.State()

	// Keep the cursor on the same notification when the list shifts.
	if selectedID != "" {
		for i, n := range m.notif.Notifications {
			if n.ID == selectedID {
				m.cursor = i
				break
			}
		}
	}
	m.ensureCursorVisible()
}

func (m *Model) selected() (domain.Notification, bool) {
	list := m.notif.Notifications
	if m.cursor < 0 || m.cursor >= len(list) {
		return domain.Notification{}, false
	}
	return list[m.cursor], true
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.ensureCursorVisible()
}

func (m *Model) visibleRows() int {
	height := m.height
	if height == 0 {
		height = defaultViewportHeight
	}
	return max(height-reservedLines, 1)
}

// ensureCursorVisible clamps the cursor to the list and scrolls the window
// so the cursor row is shown.
func (m *Model) ensureCursorVisible() {
	n := len(m.notif.Notifications)
	m.cursor = min(max(m.cursor, 0), max(n-1, 0))

	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = min(m.offset, max(n-rows, 0))
}

// View renders the TUI.
func (m *Model) View() string {
	width := m.width
	if width == 0 {
		width = defaultViewportWidth
	}

	var s strings.Builder
	s.WriteString(render.Stats(render.StatsState{
		Dashboard:     m.dash,
		Polling:       m.dashboard.Polling(),
		LastHeartbeat: m.dashboard.LastHeartbeat(),
		Now:           m.now(),
		Spinner:       m.spinner.View(),
		Width:         width,
	}))
	s.WriteString("\n")
	s.WriteString(render.Header(width))
	s.WriteString("\n")

	list := m.notif.Notifications
	if len(list) == 0 {
		s.WriteString(render.Empty(m.notif.Loading))
	} else {
		now := m.now()
		end := min(m.offset+m.visibleRows(), len(list))
		for i := m.offset; i < end; i++ {
			if i > m.offset {
				s.WriteString("\n")
			}
			s.WriteString(render.Row(render.RowState{
				Notification: list[i],
				Width:        width,
				Selected:     i == m.cursor,
				Now:          now,
			}))
		}
	}
	s.WriteString("\n")

	status, isError := m.statusMessage, m.statusMessageType == errors.MessageTypeError
	if status == "" && m.notif.Error != "" {
		status, isError = m.notif.Error, true
	}
	s.WriteString(render.Footer(m.help.View(m.keys), status, isError))
	return s.String()
}
