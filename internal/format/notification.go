package format

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

const listTimeLayout = "2006-01-02 15:04"

// SimpleFormatter formats notifications with ID, time, state and title.
type SimpleFormatter struct{}

// NewSimpleFormatter creates a new SimpleFormatter.
func NewSimpleFormatter() *SimpleFormatter {
	return &SimpleFormatter{}
}

// FormatNotifications formats notifications in simple format.
func (f *SimpleFormatter) FormatNotifications(notifications []domain.Notification, writer io.Writer) error {
	for _, n := range notifications {
		_, err := fmt.Fprintf(writer, "%s %-12s  %s  - %s\n",
			stateMarker(n), n.ID, localTime(n.Time), truncate(displayText(n), 50))
		if err != nil {
			return err
		}
	}
	return nil
}

// CompactFormatter formats notifications with the title only.
type CompactFormatter struct{}

// NewCompactFormatter creates a new CompactFormatter.
func NewCompactFormatter() *CompactFormatter {
	return &CompactFormatter{}
}

// FormatNotifications formats notifications in compact format.
func (f *CompactFormatter) FormatNotifications(notifications []domain.Notification, writer io.Writer) error {
	for _, n := range notifications {
		if _, err := fmt.Fprintln(writer, truncate(displayText(n), 60)); err != nil {
			return err
		}
	}
	return nil
}

// JSONFormatter formats notifications as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// FormatNotifications formats notifications as JSON. An empty list is
// written as [] rather than null.
func (f *JSONFormatter) FormatNotifications(notifications []domain.Notification, writer io.Writer) error {
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	data, err := json.MarshalIndent(notifications, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notifications to JSON: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return err
	}
	_, err = fmt.Fprintln(writer)
	return err
}

func displayText(n domain.Notification) string {
	if n.Title == "" {
		return n.Message
	}
	return n.Title
}

func stateMarker(n domain.Notification) string {
	if n.Unread {
		return "*"
	}
	return " "
}

func stateName(n domain.Notification) string {
	if n.Unread {
		return "unread"
	}
	return "read"
}

func localTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(listTimeLayout)
}
