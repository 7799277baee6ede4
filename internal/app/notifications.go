package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/format"
	"github.com/cristianoliveira/dashsync/internal/search"
)

// NotificationsClient defines dependencies for the notification commands.
type NotificationsClient interface {
	Notifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string) error
	DeleteNotification(ctx context.Context, id string) error
}

// ListOptions holds parameters for listing notifications.
type ListOptions struct {
	Format     string
	UnreadOnly bool
	// Search filters the list with the SearchMode provider when non-empty.
	Search     string
	SearchMode string
	Output     io.Writer
}

// ListUseCase coordinates list notifications behavior.
type ListUseCase struct {
	client NotificationsClient
}

// NewListUseCase creates a new list use-case.
func NewListUseCase(client NotificationsClient) *ListUseCase {
	if client == nil {
		panic("NewListUseCase: client dependency cannot be nil")
	}
	return &ListUseCase{client: client}
}

// Execute prints notifications, newest first, in the requested format.
func (u *ListUseCase) Execute(ctx context.Context, opts ListOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	ft, err := format.ParseFormatterType(opts.Format)
	if err != nil {
		return err
	}
	provider, err := searchProvider(opts)
	if err != nil {
		return err
	}
	list, err := u.client.Notifications(ctx)
	if err != nil {
		return fmt.Errorf("list: failed to list notifications: %w", err)
	}
	total, unread := len(list), domain.CountUnread(list)
	if opts.UnreadOnly {
		list = filterUnread(list)
	}
	if provider != nil {
		list = search.Filter(provider, list, opts.Search)
	}

	if ft == format.FormatterTypeJSON {
		return format.NewFormatter(ft).FormatNotifications(list, opts.Output)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(opts.Output, colors.Colorize(colors.Blue, "No notifications found"))
		return err
	}
	if err := format.NewFormatter(ft).FormatNotifications(list, opts.Output); err != nil {
		return err
	}
	if ft == format.FormatterTypeCompact {
		return nil
	}
	_, _ = fmt.Fprintln(opts.Output)
	return format.FormatSummary(opts.Output, total, unread)
}

// searchProvider returns nil when no search was requested.
func searchProvider(opts ListOptions) (search.Provider, error) {
	if opts.Search == "" {
		return nil, nil
	}
	p, err := search.New(opts.SearchMode)
	if err != nil {
		return nil, err
	}
	if rp, ok := p.(*search.RegexProvider); ok {
		if err := rp.Validate(opts.Search); err != nil {
			return nil, fmt.Errorf("list: invalid search pattern: %w", err)
		}
	}
	return p, nil
}

func filterUnread(list []domain.Notification) []domain.Notification {
	out := make([]domain.Notification, 0, len(list))
	for _, n := range list {
		if n.Unread {
			out = append(out, n)
		}
	}
	return out
}

// MarkReadUseCase coordinates mark-read behavior.
type MarkReadUseCase struct {
	client NotificationsClient
}

// NewMarkReadUseCase creates a new mark-read use-case.
func NewMarkReadUseCase(client NotificationsClient) *MarkReadUseCase {
	if client == nil {
		panic("NewMarkReadUseCase: client dependency cannot be nil")
	}
	return &MarkReadUseCase{client: client}
}

// Execute marks ids read, or every notification when all is set.
func (u *MarkReadUseCase) Execute(ctx context.Context, ids []string, all bool) error {
	switch {
	case all && len(ids) > 0:
		return fmt.Errorf("mark-read: --all cannot be combined with notification ids")
	case !all && len(ids) == 0:
		return fmt.Errorf("mark-read: requires notification ids or --all")
	}
	if err := u.client.MarkNotificationsRead(ctx, ids); err != nil {
		return fmt.Errorf("mark-read: %w", err)
	}
	if all {
		colors.Success("All notifications marked as read")
		return nil
	}
	colors.Success(fmt.Sprintf("%d notification(s) marked as read", len(ids)))
	return nil
}

// DeleteUseCase coordinates delete behavior.
type DeleteUseCase struct {
	client NotificationsClient
}

// NewDeleteUseCase creates a new delete use-case.
func NewDeleteUseCase(client NotificationsClient) *DeleteUseCase {
	if client == nil {
		panic("NewDeleteUseCase: client dependency cannot be nil")
	}
	return &DeleteUseCase{client: client}
}

// Execute deletes each id in order and stops at the first failure.
// A notification that is already gone counts as deleted.
func (u *DeleteUseCase) Execute(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return fmt.Errorf("delete: requires at least one notification id")
	}
	for _, id := range ids {
		err := u.client.DeleteNotification(ctx, id)
		switch {
		case api.StatusCode(err) == http.StatusNotFound:
			colors.Warning(fmt.Sprintf("Notification %s was already deleted", id))
		case err != nil:
			return fmt.Errorf("delete %s: %w", id, err)
		default:
			colors.Success(fmt.Sprintf("Notification %s deleted", id))
		}
	}
	return nil
}
