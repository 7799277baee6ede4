package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// NotificationType categorizes a notification.
// Unknown values received from the server are kept verbatim.
type NotificationType string

const (
	TypeInfo     NotificationType = "info"
	TypeSuccess  NotificationType = "success"
	TypeWarning  NotificationType = "warning"
	TypeError    NotificationType = "error"
	TypeProject  NotificationType = "project"
	TypeInvoice  NotificationType = "invoice"
	TypeDeadline NotificationType = "deadline"
)

// IsKnown reports whether the type is one the client knows how to render.
func (t NotificationType) IsKnown() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeProject, TypeInvoice, TypeDeadline:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type.
func (t NotificationType) String() string {
	return string(t)
}

// Notification is a single entry of the notification list.
type Notification struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Time       time.Time        `json:"time"`
	Unread     bool             `json:"unread"`
	Type       NotificationType `json:"type"`
	ProjectID  string           `json:"projectId,omitempty"`
	ClientName string           `json:"clientName,omitempty"`
}

// Validate validates the notification and returns an error if invalid.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("notification id cannot be empty")
	}
	if n.Title == "" && n.Message == "" {
		return fmt.Errorf("notification %s has neither title nor message", n.ID)
	}
	if n.Time.IsZero() {
		return fmt.Errorf("notification %s has no time", n.ID)
	}
	return nil
}

// NotificationState is the read-only view exposed by the notification synchronizer.
type NotificationState struct {
	// Notifications are ordered newest first and exclude entries being deleted.
	Notifications    []Notification
	UnreadCount      int
	Loading          bool
	Error            string
	ConnectionStatus ConnectionStatus
	Version          uint64
	UpdatedAt        time.Time
}

// CountUnread returns the number of unread entries.
func CountUnread(list []Notification) int {
	count := 0
	for _, n := range list {
		if n.Unread {
			count++
		}
	}
	return count
}

// UnreadIDs returns the ids of unread entries in list order.
func UnreadIDs(list []Notification) []string {
	var ids []string
	for _, n := range list {
		if n.Unread {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// FindNotification returns the entry with the given id.
func FindNotification(list []Notification, id string) (Notification, bool) {
	for _, n := range list {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// MarkRead returns a copy of list where the entries named by ids are read.
// An empty ids marks every entry. The ids of entries that actually changed
// are returned so the caller can undo exactly those.
func MarkRead(list []Notification, ids []string) ([]Notification, []string) {
	return setUnread(list, ids, false)
}

// MarkUnread returns a copy of list where the entries named by ids are unread.
func MarkUnread(list []Notification, ids []string) ([]Notification, []string) {
	if len(ids) == 0 {
		return list, nil
	}
	return setUnread(list, ids, true)
}

func setUnread(list []Notification, ids []string, unread bool) ([]Notification, []string) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]Notification, len(list))
	var changed []string
	for i, n := range list {
		if (len(ids) == 0 || wanted[n.ID]) && n.Unread != unread {
			n.Unread = unread
			changed = append(changed, n.ID)
		}
		out[i] = n
	}
	return out, changed
}

// WithoutNotification returns a copy of list without the entry with the given id.
func WithoutNotification(list []Notification, id string) []Notification {
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// SortNewestFirst sorts the list in place by time, newest first.
// Entries with equal times keep their relative order.
func SortNewestFirst(list []Notification) {
	slices.SortStableFunc(list, func(a, b Notification) int {
		return b.Time.Compare(a.Time)
	})
}
