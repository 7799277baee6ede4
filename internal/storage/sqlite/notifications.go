package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// AddNotification stores n. A zero time is replaced with now.
func (s *Storage) AddNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.Time.IsZero() {
		n.Time = s.utcNow()
	}
	if n.Type == "" {
		n.Type = domain.TypeInfo
	}
	if err := n.Validate(); err != nil {
		return domain.Notification{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, title, message, time, unread, type, project_id, client_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Message, formatTime(n.Time), n.Unread, string(n.Type), n.ProjectID, n.ClientName)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("sqlite storage: add notification: %w", err)
	}
	n.Time = n.Time.UTC()
	return n, nil
}

// ListNotifications returns every notification, newest first.
func (s *Storage) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, message, time, unread, type, project_id, client_name FROM notifications ORDER BY time DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: list notifications: %w", err)
	}
	defer rows.Close()

	list := []domain.Notification{}
	for rows.Next() {
		var (
			n    domain.Notification
			when string
			kind string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &when, &n.Unread, &kind, &n.ProjectID, &n.ClientName); err != nil {
			return nil, fmt.Errorf("sqlite storage: scan notification: %w", err)
		}
		t, err := parseTime(when)
		if err != nil {
			return nil, err
		}
		n.Time = t
		n.Type = domain.NotificationType(kind)
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite storage: list notifications: %w", err)
	}
	return list, nil
}

// MarkRead marks the given notifications read, or all of them when ids is
// empty. It returns the number of rows that changed.
func (s *Storage) MarkRead(ctx context.Context, ids []string) (int64, error) {
	query := `UPDATE notifications SET unread = 0 WHERE unread = 1`
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += ` AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite storage: mark read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite storage: read rows affected: %w", err)
	}
	return affected, nil
}

// DeleteNotification removes one notification.
func (s *Storage) DeleteNotification(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite storage: delete notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite storage: read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sqlite storage: delete notification: %w: id %s", ErrNotificationNotFound, id)
	}
	return nil
}
