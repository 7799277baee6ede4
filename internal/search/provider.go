// Package search filters notifications by a query.
package search

import (
	"fmt"
	"strings"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// Provider matches notifications against a query.
type Provider interface {
	// Match returns true if the notification matches the query.
	Match(n domain.Notification, query string) bool

	// Name returns the provider name.
	Name() string
}

// Searchable fields.
const (
	FieldTitle   = "title"
	FieldMessage = "message"
	FieldType    = "type"
	FieldClient  = "client"
	FieldProject = "project"
)

// Options holds configuration options for creating search providers.
type Options struct {
	CaseInsensitive bool
	Fields          []string
}

// DefaultOptions searches the text fields and the client name, ignoring case.
func DefaultOptions() Options {
	return Options{
		CaseInsensitive: true,
		Fields:          []string{FieldTitle, FieldMessage, FieldClient},
	}
}

// Option is a function that modifies search options.
type Option func(*Options)

// WithCaseInsensitive sets case-insensitive search.
func WithCaseInsensitive(enabled bool) Option {
	return func(o *Options) {
		o.CaseInsensitive = enabled
	}
}

// WithFields sets the fields to search in.
func WithFields(fields ...string) Option {
	return func(o *Options) {
		o.Fields = fields
	}
}

func applyOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fieldValue returns the value of field, or "" for unknown fields.
func fieldValue(n domain.Notification, field string) string {
	switch field {
	case FieldTitle:
		return n.Title
	case FieldMessage:
		return n.Message
	case FieldType:
		return string(n.Type)
	case FieldClient:
		return n.ClientName
	case FieldProject:
		return n.ProjectID
	}
	return ""
}

// ProviderNames lists the names accepted by New.
var ProviderNames = []string{"token", "substring", "regex"}

// New returns the provider called name. An empty name selects token search.
func New(name string, opts ...Option) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "token":
		return NewTokenProvider(opts...), nil
	case "substring":
		return NewSubstringProvider(opts...), nil
	case "regex":
		return NewRegexProvider(opts...), nil
	}
	return nil, fmt.Errorf("invalid search mode: %q (expected one of: %s)", name, strings.Join(ProviderNames, ", "))
}

// Filter returns the notifications of list that match query, keeping order.
func Filter(p Provider, list []domain.Notification, query string) []domain.Notification {
	out := make([]domain.Notification, 0, len(list))
	for _, n := range list {
		if p.Match(n, query) {
			out = append(out, n)
		}
	}
	return out
}
