package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/format"
)

const (
	typeWidth            = 8
	statusWidth          = 6
	clientWidth          = 18
	ageWidth             = 5
	spacesBetweenColumns = 8
	defaultMessageWidth  = 50
	minMessageWidth      = 10
	maxRecentProjects    = 5
)

var (
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ansiColorNumber(colors.Blue)))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ansiColorNumber(colors.Red)))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RowState defines the inputs needed to render a notification row.
type RowState struct {
	Notification domain.Notification
	Width        int
	Selected     bool
	Now          time.Time
}

// StatsState defines the inputs needed to render the dashboard panel.
type StatsState struct {
	Dashboard domain.DashboardState
	Polling   bool
	// LastHeartbeat is shown as an age while connected; zero hides it.
	LastHeartbeat time.Time
	Now           time.Time
	Spinner       string
	Width         int
}

// Header renders the notification table header.
func Header(width int) string {
	messageWidth := calculateMessageWidth(width)
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s",
		typeWidth, "TYPE",
		statusWidth, "STATE",
		messageWidth, "MESSAGE",
		clientWidth, "CLIENT",
		ageWidth, "AGE",
	)
	return titleStyle.Render(header)
}

// Row renders a single notification row.
func Row(state RowState) string {
	rowStyle := lipgloss.NewStyle()
	if state.Selected {
		rowStyle = rowStyle.Background(lipgloss.Color(ansiColorNumber(colors.Blue))).Foreground(lipgloss.Color("0"))
	} else if !state.Notification.Unread {
		rowStyle = rowStyle.Foreground(lipgloss.Color("245"))
	}

	n := state.Notification
	message := n.Title
	if n.Message != "" {
		if message != "" {
			message += ": "
		}
		message += n.Message
	}
	messageWidth := calculateMessageWidth(state.Width)

	row := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s",
		typeWidth, typeIcon(n.Type),
		statusWidth, statusIcon(n.Unread),
		messageWidth, truncate(message, messageWidth),
		clientWidth, truncate(n.ClientName, clientWidth),
		ageWidth, calculateAge(n.Time, state.Now),
	)
	return rowStyle.Render(row)
}

// Empty renders the placeholder shown when the list has no rows.
func Empty(loading bool) string {
	if loading {
		return mutedStyle.Render("Loading notifications...")
	}
	return mutedStyle.Render("No notifications found")
}

// Stats renders the dashboard panel: connection badge, aggregate figures
// and the most recent projects.
func Stats(state StatsState) string {
	d := state.Dashboard
	var b strings.Builder

	b.WriteString(titleStyle.Render("Dashboard"))
	b.WriteString("  ")
	b.WriteString(Status(d.ConnectionStatus, state.Polling))
	if d.ConnectionStatus == domain.StatusConnected && !state.LastHeartbeat.IsZero() {
		b.WriteString(mutedStyle.Render("  ♥ " + calculateAge(state.LastHeartbeat, state.Now)))
	}
	if d.Loading && state.Spinner != "" {
		b.WriteString(" ")
		b.WriteString(state.Spinner)
	}
	b.WriteString("\n")

	if d.Stats == nil {
		if d.Error != "" {
			b.WriteString(errorStyle.Render(d.Error))
		} else {
			b.WriteString(mutedStyle.Render("Waiting for data..."))
		}
		return frame(b.String(), state.Width)
	}

	s := d.Stats
	fmt.Fprintf(&b, "Projects %d (active %d, completed %d)  Clients %d\n",
		s.TotalProjects, s.ActiveProjects, s.CompletedProjects, s.TotalClients)
	fmt.Fprintf(&b, "Earned %s  Pending %s  This month %s",
		format.Money(s.TotalEarnings), format.Money(s.PendingPayments), format.Money(s.MonthlyEarnings))

	for i, p := range d.RecentProjects {
		if i == maxRecentProjects {
			break
		}
		fmt.Fprintf(&b, "\n  %s %s · %s · %s",
			projectIcon(p.Status), truncate(p.Name, 28), truncate(p.ClientName, clientWidth), format.Money(p.Budget))
	}
	if d.Error != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(d.Error))
	}
	return frame(b.String(), state.Width)
}

// Status renders the connection badge.
func Status(status domain.ConnectionStatus, polling bool) string {
	var color string
	switch status {
	case domain.StatusConnected:
		color = colors.Green
	case domain.StatusConnecting, domain.StatusReconnecting:
		color = colors.Yellow
	case domain.StatusDisconnected:
		color = colors.Red
	}
	label := "● " + status.String()
	if polling {
		label += " (polling)"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(ansiColorNumber(color))).Render(label)
}

// Footer renders the help line and the latest status message.
func Footer(help, message string, isError bool) string {
	if message == "" {
		return help
	}
	style := mutedStyle
	if isError {
		style = errorStyle
	}
	return help + "\n" + style.Render(message)
}

func frame(content string, width int) string {
	if width > 4 {
		return panelStyle.Width(width - 2).Render(content)
	}
	return panelStyle.Render(content)
}

func calculateMessageWidth(width int) int {
	if width == 0 {
		return defaultMessageWidth
	}
	w := width - typeWidth - statusWidth - clientWidth - ageWidth - spacesBetweenColumns
	if w < minMessageWidth {
		return minMessageWidth
	}
	return w
}

func truncate(value string, width int) string {
	if width <= 0 || utf8.RuneCountInString(value) <= width {
		return value
	}
	if width <= 3 {
		return string([]rune(value)[:width])
	}
	return string([]rune(value)[:width-3]) + "..."
}

func typeIcon(t domain.NotificationType) string {
	switch t {
	case domain.TypeError:
		return "✗ err"
	case domain.TypeWarning:
		return "! wrn"
	case domain.TypeSuccess:
		return "✓ ok"
	case domain.TypeProject:
		return "◆ prj"
	case domain.TypeInvoice:
		return "$ inv"
	case domain.TypeDeadline:
		return "⏰ due"
	case domain.TypeInfo, "":
		return "i inf"
	default:
		return "? " + truncate(string(t), 3)
	}
}

func statusIcon(unread bool) string {
	if unread {
		return "●"
	}
	return "○"
}

func projectIcon(status domain.ProjectStatus) string {
	switch status {
	case domain.ProjectActive:
		return "▶"
	case domain.ProjectOnHold:
		return "‖"
	case domain.ProjectCompleted:
		return "✓"
	default:
		return "·"
	}
}

func calculateAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.IsZero() {
		now = time.Now()
	}

	duration := now.Sub(t)
	if duration < 0 {
		duration = 0
	}

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	}
	return fmt.Sprintf("%dd", int(duration.Hours()/24))
}

// ansiColorNumber extracts the color number from an ANSI escape sequence.
// Example: "\033[0;34m" -> "34"
func ansiColorNumber(ansi string) string {
	if len(ansi) < 2 {
		return ""
	}
	lastSemicolon := strings.LastIndex(ansi, ";")
	if lastSemicolon == -1 {
		return ""
	}
	return ansi[lastSemicolon+1 : len(ansi)-1]
}
