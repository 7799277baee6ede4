package notifications

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// MockSource is a testify mock of Source.
type MockSource struct {
	mock.Mock
}

// Notifications returns the configured list.
func (m *MockSource) Notifications(ctx context.Context) ([]domain.Notification, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.Notification)
	return list, args.Error(1)
}

// MarkNotificationsRead records the call.
func (m *MockSource) MarkNotificationsRead(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// DeleteNotification records the call.
func (m *MockSource) DeleteNotification(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDesktop is a testify mock of DesktopNotifier.
type MockDesktop struct {
	mock.Mock
}

// Available returns the configured answer.
func (m *MockDesktop) Available() bool {
	return m.Called().Bool(0)
}

// Notify records the call.
func (m *MockDesktop) Notify(ctx context.Context, title, body string) error {
	args := m.Called(ctx, title, body)
	return args.Error(0)
}
