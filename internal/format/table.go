package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/domain"
)

// TableConfig holds configuration for table formatting.
type TableConfig struct {
	// ShowHeaders determines whether to show column headers.
	ShowHeaders bool

	// HeaderColor is the color to use for headers.
	HeaderColor string

	// ColumnWidths defines the width for each column.
	ColumnWidths map[string]int

	// ColumnAlignments defines the alignment for each column (left, right, center).
	ColumnAlignments map[string]string
}

// DefaultTableConfig returns a default table configuration.
func DefaultTableConfig() *TableConfig {
	return &TableConfig{
		ShowHeaders: true,
		HeaderColor: colors.Blue,
		ColumnWidths: map[string]int{
			"ID":     12,
			"Time":   16,
			"Type":   8,
			"State":  6,
			"Client": 16,
			"Title":  32,
		},
		ColumnAlignments: map[string]string{
			"ID":    "left",
			"Time":  "left",
			"State": "center",
		},
	}
}

// TableColumn represents a column in a table.
type TableColumn struct {
	// Name is the column name displayed in the header.
	Name string

	// Width is the column width in characters.
	Width int

	// Alignment is the text alignment (left, right, center).
	Alignment string

	// Value extracts the raw cell text from a notification.
	Value func(domain.Notification) string
}

// TableFormatter writes notifications as an aligned table.
type TableFormatter struct {
	config  *TableConfig
	columns []TableColumn
}

// NewTableFormatter creates a TableFormatter with the default columns.
func NewTableFormatter() *TableFormatter {
	config := DefaultTableConfig()
	column := func(name string, value func(domain.Notification) string) TableColumn {
		return TableColumn{
			Name:      name,
			Width:     config.ColumnWidths[name],
			Alignment: config.ColumnAlignments[name],
			Value:     value,
		}
	}
	return &TableFormatter{
		config: config,
		columns: []TableColumn{
			column("ID", func(n domain.Notification) string { return n.ID }),
			column("Time", func(n domain.Notification) string { return localTime(n.Time) }),
			column("Type", func(n domain.Notification) string { return n.Type.String() }),
			column("State", stateName),
			column("Title", displayText),
		},
	}
}

// WithColumns adds custom columns to the formatter.
func (f *TableFormatter) WithColumns(columns ...TableColumn) *TableFormatter {
	f.columns = append(f.columns, columns...)
	return f
}

// FormatNotifications formats notifications as a table. Nothing is written
// for an empty list.
func (f *TableFormatter) FormatNotifications(notifications []domain.Notification, writer io.Writer) error {
	if len(notifications) == 0 {
		return nil
	}
	if f.config.ShowHeaders {
		if err := f.writeHeader(writer); err != nil {
			return err
		}
		if err := f.writeSeparator(writer); err != nil {
			return err
		}
	}
	for _, n := range notifications {
		if err := f.writeRow(n, writer); err != nil {
			return err
		}
	}
	return nil
}

func (f *TableFormatter) writeHeader(writer io.Writer) error {
	cells := make([]string, len(f.columns))
	for i, col := range f.columns {
		cells[i] = formatString(col.Name, col.Width, "left")
	}
	return f.writeLine(writer, colors.Colorize(f.config.HeaderColor, strings.Join(cells, "  ")))
}

func (f *TableFormatter) writeSeparator(writer io.Writer) error {
	cells := make([]string, len(f.columns))
	for i, col := range f.columns {
		cells[i] = strings.Repeat("-", col.Width)
	}
	return f.writeLine(writer, colors.Colorize(f.config.HeaderColor, strings.Join(cells, "  ")))
}

func (f *TableFormatter) writeRow(n domain.Notification, writer io.Writer) error {
	cells := make([]string, len(f.columns))
	for i, col := range f.columns {
		cells[i] = formatString(truncate(col.Value(n), col.Width), col.Width, col.Alignment)
	}
	return f.writeLine(writer, strings.Join(cells, "  "))
}

func (f *TableFormatter) writeLine(writer io.Writer, line string) error {
	_, err := fmt.Fprintln(writer, strings.TrimRight(line, " "))
	return err
}

// formatString pads s to width using the given alignment. Widths are
// measured in terminal cells.
func formatString(s string, width int, alignment string) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	pad := width - w
	switch alignment {
	case "right":
		return strings.Repeat(" ", pad) + s
	case "center":
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	default:
		return s + strings.Repeat(" ", pad)
	}
}

// truncate cuts s to width cells, ending with "..." when shortened.
func truncate(s string, width int) string {
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width < 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}
