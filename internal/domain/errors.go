package domain

import "errors"

var (
	// ErrNotFound is returned when a project or notification does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidProject is returned when a project fails validation.
	ErrInvalidProject = errors.New("invalid project")
)
