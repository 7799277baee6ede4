package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// Money formats an amount as dollars with thousands separators.
func Money(amount float64) string {
	if amount < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -amount)
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// FormatSummary writes the unread summary line of a notification list.
// Format: "Notifications: X (Y unread)\n", or "No notifications\n" when empty.
func FormatSummary(w io.Writer, total, unread int) error {
	if total == 0 {
		_, err := fmt.Fprintln(w, "No notifications")
		return err
	}
	_, err := fmt.Fprintf(w, "Notifications: %d (%d unread)\n", total, unread)
	return err
}

// FormatStats writes the dashboard aggregates followed by the recent
// projects, one per line.
func FormatStats(w io.Writer, snapshot domain.DashboardSnapshot) error {
	s := snapshot.Stats
	rows := [][2]string{
		{"Projects", fmt.Sprint(s.TotalProjects)},
		{"Active", fmt.Sprint(s.ActiveProjects)},
		{"Completed", fmt.Sprint(s.CompletedProjects)},
		{"Clients", fmt.Sprint(s.TotalClients)},
		{"Total earnings", Money(s.TotalEarnings)},
		{"Pending payments", Money(s.PendingPayments)},
		{"This month", Money(s.MonthlyEarnings)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s  %s\n", formatString(row[0], 16, "left"), row[1]); err != nil {
			return err
		}
	}
	if len(snapshot.RecentProjects) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nRecent projects"); err != nil {
		return err
	}
	for _, p := range snapshot.RecentProjects {
		_, err := fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n",
			formatString(truncate(p.ID, 12), 12, "left"),
			formatString(truncate(p.Name, 24), 24, "left"),
			formatString(truncate(p.ClientName, 16), 16, "left"),
			formatString(p.Status.String(), 9, "left"),
			Money(p.Budget))
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatJSON writes v as indented JSON.
func FormatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
