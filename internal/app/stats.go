package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/format"
)

// StatsClient defines dependencies for fetching the dashboard.
type StatsClient interface {
	DashboardStats(ctx context.Context) (domain.DashboardSnapshot, error)
}

// StatsOptions holds parameters for the stats output.
type StatsOptions struct {
	JSON   bool
	Output io.Writer
}

// StatsUseCase prints the dashboard once.
type StatsUseCase struct {
	client StatsClient
}

// NewStatsUseCase creates a stats use-case.
func NewStatsUseCase(client StatsClient) *StatsUseCase {
	if client == nil {
		panic("NewStatsUseCase: client dependency cannot be nil")
	}
	return &StatsUseCase{client: client}
}

// Execute fetches the dashboard and writes it to opts.Output.
func (u *StatsUseCase) Execute(ctx context.Context, opts StatsOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	snapshot, err := u.client.DashboardStats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if opts.JSON {
		return format.FormatJSON(opts.Output, snapshot)
	}
	return format.FormatStats(opts.Output, snapshot)
}
