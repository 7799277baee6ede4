// Package format provides output formatting functionality for CLI commands.
// It includes formatters for notification lists and the dashboard summary.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// Formatter defines the interface for notification list formatters.
type Formatter interface {
	// FormatNotifications formats a slice of notifications and writes to the writer.
	FormatNotifications(notifications []domain.Notification, writer io.Writer) error
}

// FormatterType represents the type of formatter to use.
type FormatterType string

const (
	// FormatterTypeSimple displays notifications with ID, time and title.
	FormatterTypeSimple FormatterType = "simple"

	// FormatterTypeTable displays notifications in a table format with headers.
	FormatterTypeTable FormatterType = "table"

	// FormatterTypeCompact displays only titles, one per line.
	FormatterTypeCompact FormatterType = "compact"

	// FormatterTypeJSON displays notifications in JSON format.
	FormatterTypeJSON FormatterType = "json"
)

// Types lists the accepted formatter names.
var Types = []FormatterType{
	FormatterTypeSimple,
	FormatterTypeTable,
	FormatterTypeCompact,
	FormatterTypeJSON,
}

// NewFormatter creates a new formatter of the specified type.
func NewFormatter(formatterType FormatterType) Formatter {
	switch formatterType {
	case FormatterTypeTable:
		return NewTableFormatter()
	case FormatterTypeCompact:
		return NewCompactFormatter()
	case FormatterTypeJSON:
		return NewJSONFormatter()
	default:
		return NewSimpleFormatter()
	}
}

// ParseFormatterType validates a formatter name. The empty string selects
// the simple formatter.
func ParseFormatterType(name string) (FormatterType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FormatterTypeSimple, nil
	}
	for _, ft := range Types {
		if string(ft) == name {
			return ft, nil
		}
	}
	valid := make([]string, len(Types))
	for i, ft := range Types {
		valid[i] = string(ft)
	}
	return "", fmt.Errorf("%s", FormatValidationError("format", name, strings.Join(valid, ", ")))
}

// FormatValidationError formats a validation error message for an option.
func FormatValidationError(field, value, validOptions string) string {
	return fmt.Sprintf("invalid %s: %q (expected one of: %s)", field, value, validOptions)
}
