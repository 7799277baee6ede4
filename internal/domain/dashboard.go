package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stats are the dashboard aggregates computed by the server.
// The synchronizers carry them around without interpreting them.
type Stats struct {
	TotalProjects     int     `json:"totalProjects"`
	ActiveProjects    int     `json:"activeProjects"`
	CompletedProjects int     `json:"completedProjects"`
	TotalClients      int     `json:"totalClients"`
	TotalEarnings     float64 `json:"totalEarnings"`
	PendingPayments   float64 `json:"pendingPayments"`
	MonthlyEarnings   float64 `json:"monthlyEarnings"`
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// IsValid checks if the project status is valid.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the project status.
func (s ProjectStatus) String() string {
	return string(s)
}

// ParseProjectStatus parses a string into a ProjectStatus.
func ParseProjectStatus(status string) (ProjectStatus, error) {
	ps := ProjectStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ps.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidProject, status)
	}
	return ps, nil
}

// Project is a row of the recent projects list.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	ClientName  string        `json:"clientName"`
	Status      ProjectStatus `json:"status"`
	Budget      float64       `json:"budget"`
	Deadline    string        `json:"deadline,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// NewProject holds the fields accepted when creating a project.
type NewProject struct {
	Name       string  `json:"name"`
	ClientName string  `json:"clientName"`
	Budget     float64 `json:"budget"`
	Deadline   string  `json:"deadline,omitempty"`
}

// Validate checks the required fields of a new project.
func (p NewProject) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidProject)
	}
	if strings.TrimSpace(p.ClientName) == "" {
		return fmt.Errorf("%w: client name cannot be empty", ErrInvalidProject)
	}
	if p.Budget < 0 {
		return fmt.Errorf("%w: budget cannot be negative", ErrInvalidProject)
	}
	if p.Deadline != "" {
		if _, err := time.Parse(time.DateOnly, p.Deadline); err != nil {
			return fmt.Errorf("%w: deadline must be YYYY-MM-DD", ErrInvalidProject)
		}
	}
	return nil
}

// StatusCount is one bar of the projects-by-status chart.
type StatusCount struct {
	Status ProjectStatus `json:"status"`
	Count  int           `json:"count"`
}

// MonthlyEarning is one point of the monthly earnings chart.
type MonthlyEarning struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// DashboardSnapshot is the full dashboard payload served by
// GET /api/dashboard/stats and carried by dashboard_update messages.
type DashboardSnapshot struct {
	Stats            Stats            `json:"stats"`
	RecentProjects   []Project        `json:"recentProjects"`
	ProjectsByStatus []StatusCount    `json:"projectsByStatus,omitempty"`
	MonthlyEarnings  []MonthlyEarning `json:"monthlyEarnings,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s DashboardSnapshot) Clone() DashboardSnapshot {
	out := s
	out.RecentProjects = append([]Project(nil), s.RecentProjects...)
	out.ProjectsByStatus = append([]StatusCount(nil), s.ProjectsByStatus...)
	out.MonthlyEarnings = append([]MonthlyEarning(nil), s.MonthlyEarnings...)
	return out
}

// DashboardState is the read-only view exposed by the dashboard synchronizer.
type DashboardState struct {
	// Stats is nil until the first successful load.
	Stats            *Stats
	RecentProjects   []Project
	ProjectsByStatus []StatusCount
	MonthlyEarnings  []MonthlyEarning
	Loading          bool
	// Error may be set while Stats still holds the last good data.
	Error            string
	ConnectionStatus ConnectionStatus
	Version          uint64
	UpdatedAt        time.Time
}

// HasData reports whether stats have been loaded at least once.
func (s DashboardState) HasData() bool {
	return s.Stats != nil
}
