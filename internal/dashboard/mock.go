package dashboard

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// MockSource is a testify mock of Source.
//
//	src := new(MockSource)
//	src.On("DashboardStats", mock.Anything).Return(domain.DashboardSnapshot{}, nil)
type MockSource struct {
	mock.Mock
}

// DashboardStats returns the configured snapshot.
func (m *MockSource) DashboardStats(ctx context.Context) (domain.DashboardSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.DashboardSnapshot), args.Error(1)
}
