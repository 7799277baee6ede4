package app

import (
	"context"
	"fmt"

	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
)

// ProjectsClient defines dependencies for the project commands.
type ProjectsClient interface {
	CreateProject(ctx context.Context, p domain.NewProject) (domain.Project, error)
	SetProjectStatus(ctx context.Context, id string, status domain.ProjectStatus) (domain.Project, error)
}

// Hinter asks live synchronizers to refetch after a mutation.
type Hinter interface {
	Hint(ctx context.Context, reason refreshbus.Reason) (bool, error)
}

// ProjectUseCase coordinates project mutations.
type ProjectUseCase struct {
	client ProjectsClient
	hinter Hinter
}

// NewProjectUseCase creates a project use-case. hinter may be nil.
func NewProjectUseCase(client ProjectsClient, hinter Hinter) *ProjectUseCase {
	if client == nil {
		panic("NewProjectUseCase: client dependency cannot be nil")
	}
	return &ProjectUseCase{client: client, hinter: hinter}
}

// Add creates a project.
func (u *ProjectUseCase) Add(ctx context.Context, p domain.NewProject) (domain.Project, error) {
	created, err := u.client.CreateProject(ctx, p)
	if err != nil {
		return domain.Project{}, fmt.Errorf("project add: %w", err)
	}
	colors.Success(fmt.Sprintf("Project %s created (%s)", created.Name, created.ID))
	u.hint(ctx, refreshbus.ReasonProjectCreated)
	return created, nil
}

// SetStatus moves a project to status.
func (u *ProjectUseCase) SetStatus(ctx context.Context, id string, status domain.ProjectStatus) (domain.Project, error) {
	if !status.IsValid() {
		return domain.Project{}, fmt.Errorf("project status: %w: unknown status %q", domain.ErrInvalidProject, status)
	}
	updated, err := u.client.SetProjectStatus(ctx, id, status)
	if err != nil {
		return domain.Project{}, fmt.Errorf("project status: %w", err)
	}
	colors.Success(fmt.Sprintf("Project %s is now %s", updated.Name, updated.Status))

	reason := refreshbus.ReasonProjectUpdated
	if status == domain.ProjectCompleted {
		reason = refreshbus.ReasonProjectCompleted
	}
	u.hint(ctx, reason)
	return updated, nil
}

// Complete marks a project completed.
func (u *ProjectUseCase) Complete(ctx context.Context, id string) (domain.Project, error) {
	return u.SetStatus(ctx, id, domain.ProjectCompleted)
}

// hint failures never fail the mutation itself.
func (u *ProjectUseCase) hint(ctx context.Context, reason refreshbus.Reason) {
	if u.hinter == nil {
		return
	}
	sent, err := u.hinter.Hint(ctx, reason)
	if err != nil {
		colors.Warning(fmt.Sprintf("refresh after %s failed: %v", reason, err))
		return
	}
	if !sent {
		colors.Debug(fmt.Sprintf("refresh hint %s skipped", reason))
	}
}
