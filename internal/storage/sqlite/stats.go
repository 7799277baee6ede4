package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// RecentProjectsLimit is the number of rows in a snapshot's recent list.
const RecentProjectsLimit = 5

// earningsMonths is the length of the monthly earnings series.
const earningsMonths = 6

// Snapshot computes the full dashboard payload.
func (s *Storage) Snapshot(ctx context.Context) (domain.DashboardSnapshot, error) {
	var snap domain.DashboardSnapshot
	now := s.utcNow()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'active'), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COUNT(DISTINCT client_name),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN budget END), 0),
			COALESCE(SUM(CASE WHEN status IN ('active', 'on_hold') THEN budget END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' AND completed_at >= ? THEN budget END), 0)
		FROM projects`, formatTime(monthStart)).Scan(
		&snap.Stats.TotalProjects,
		&snap.Stats.ActiveProjects,
		&snap.Stats.CompletedProjects,
		&snap.Stats.TotalClients,
		&snap.Stats.TotalEarnings,
		&snap.Stats.PendingPayments,
		&snap.Stats.MonthlyEarnings,
	)
	if err != nil {
		return domain.DashboardSnapshot{}, fmt.Errorf("sqlite storage: stats: %w", err)
	}

	if snap.RecentProjects, err = s.RecentProjects(ctx, RecentProjectsLimit); err != nil {
		return domain.DashboardSnapshot{}, err
	}
	if snap.ProjectsByStatus, err = s.projectsByStatus(ctx); err != nil {
		return domain.DashboardSnapshot{}, err
	}
	if snap.MonthlyEarnings, err = s.monthlyEarnings(ctx, monthStart); err != nil {
		return domain.DashboardSnapshot{}, err
	}
	return snap, nil
}

func (s *Storage) projectsByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: projects by status: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusCount
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("sqlite storage: projects by status: %w", err)
		}
		out = append(out, domain.StatusCount{Status: domain.ProjectStatus(status), Count: count})
	}
	return out, rows.Err()
}

// monthlyEarnings returns completed budgets per month for the months up to
// and including the current one, oldest first, with empty months as zero.
func (s *Storage) monthlyEarnings(ctx context.Context, monthStart time.Time) ([]domain.MonthlyEarning, error) {
	from := monthStart.AddDate(0, -(earningsMonths - 1), 0)
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(completed_at, 1, 7), SUM(budget)
		FROM projects
		WHERE status = 'completed' AND completed_at >= ?
		GROUP BY 1`, formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: monthly earnings: %w", err)
	}
	defer rows.Close()

	byMonth := make(map[string]float64)
	for rows.Next() {
		var (
			month  string
			amount float64
		)
		if err := rows.Scan(&month, &amount); err != nil {
			return nil, fmt.Errorf("sqlite storage: monthly earnings: %w", err)
		}
		byMonth[month] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite storage: monthly earnings: %w", err)
	}

	out := make([]domain.MonthlyEarning, 0, earningsMonths)
	for i := range earningsMonths {
		month := from.AddDate(0, i, 0).Format("2006-01")
		out = append(out, domain.MonthlyEarning{Month: month, Amount: byMonth[month]})
	}
	return out, nil
}
