package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

const projectColumns = `id, name, client_name, status, budget, deadline, created_at, completed_at`

// CreateProject stores a new project in the planning status.
func (s *Storage) CreateProject(ctx context.Context, id string, p domain.NewProject) (domain.Project, error) {
	if err := checkID(id); err != nil {
		return domain.Project{}, err
	}
	if err := p.Validate(); err != nil {
		return domain.Project{}, err
	}
	project := domain.Project{
		ID:         id,
		Name:       p.Name,
		ClientName: p.ClientName,
		Status:     domain.ProjectPlanning,
		Budget:     p.Budget,
		Deadline:   p.Deadline,
		CreatedAt:  s.utcNow(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, client_name, status, budget, deadline, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.ClientName, string(project.Status), project.Budget, project.Deadline, formatTime(project.CreatedAt))
	if err != nil {
		return domain.Project{}, fmt.Errorf("sqlite storage: create project: %w", err)
	}
	return project, nil
}

// SetProjectStatus changes the status of a project. Moving to completed
// stamps completed_at; leaving completed clears it.
func (s *Storage) SetProjectStatus(ctx context.Context, id string, status domain.ProjectStatus) (domain.Project, error) {
	if err := checkID(id); err != nil {
		return domain.Project{}, err
	}
	if !status.IsValid() {
		return domain.Project{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidProject, status)
	}
	var completedAt any
	if status == domain.ProjectCompleted {
		completedAt = formatTime(s.utcNow())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, completed_at = CASE WHEN ? IS NULL THEN NULL ELSE COALESCE(completed_at, ?) END WHERE id = ?`,
		string(status), completedAt, completedAt, id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("sqlite storage: update project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Project{}, fmt.Errorf("sqlite storage: read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Project{}, fmt.Errorf("sqlite storage: update project: %w: id %s", ErrProjectNotFound, id)
	}
	return s.GetProject(ctx, id)
}

// GetProject returns one project.
func (s *Storage) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, fmt.Errorf("sqlite storage: get project: %w: id %s", ErrProjectNotFound, id)
	}
	return p, err
}

// RecentProjects returns the newest projects first.
func (s *Storage) RecentProjects(ctx context.Context, limit int) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: list projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite storage: list projects: %w", err)
	}
	return projects, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (domain.Project, error) {
	var (
		p           domain.Project
		status      string
		createdAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.ClientName, &status, &p.Budget, &p.Deadline, &createdAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, err
		}
		return domain.Project{}, fmt.Errorf("sqlite storage: scan project: %w", err)
	}
	p.Status = domain.ProjectStatus(status)
	created, err := parseTime(createdAt)
	if err != nil {
		return domain.Project{}, err
	}
	p.CreatedAt = created
	if completedAt.Valid {
		done, err := parseTime(completedAt.String)
		if err != nil {
			return domain.Project{}, err
		}
		p.CompletedAt = &done
	}
	return p, nil
}
