package search

import (
	"strings"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// TokenProvider splits the query on whitespace and requires every token to
// match at least one field. The tokens "read" and "unread" filter by state,
// and "type:<t>" filters by notification type.
type TokenProvider struct {
	opts Options
}

// NewTokenProvider creates a new token search provider.
func NewTokenProvider(opts ...Option) Provider {
	return &TokenProvider{opts: applyOptions(opts)}
}

// Match returns true if all text tokens match and the notification passes
// the state and type filters.
func (p *TokenProvider) Match(n domain.Notification, query string) bool {
	var (
		readOnly, unreadOnly bool
		types                []string
		text                 []string
	)
	for _, token := range strings.Fields(query) {
		lower := strings.ToLower(token)
		switch {
		case lower == "read":
			readOnly = true
		case lower == "unread":
			unreadOnly = true
		case strings.HasPrefix(lower, "type:"):
			types = append(types, strings.TrimPrefix(lower, "type:"))
		case p.opts.CaseInsensitive:
			text = append(text, lower)
		default:
			text = append(text, token)
		}
	}

	// Both state filters cancel out.
	if readOnly != unreadOnly {
		if readOnly && n.Unread || unreadOnly && !n.Unread {
			return false
		}
	}
	if len(types) > 0 && !containsFold(types, string(n.Type)) {
		return false
	}

	for _, token := range text {
		if !p.matchToken(n, token) {
			return false
		}
	}
	return true
}

func (p *TokenProvider) matchToken(n domain.Notification, token string) bool {
	for _, field := range p.opts.Fields {
		value := fieldValue(n, field)
		if value == "" {
			continue
		}
		if p.opts.CaseInsensitive {
			value = strings.ToLower(value)
		}
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Name returns the provider name.
func (p *TokenProvider) Name() string {
	return "token"
}
