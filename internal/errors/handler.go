// Package errors reports errors to the user, either on the terminal or in the
// status line of the watch dashboard.
package errors

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/cristianoliveira/dashsync/internal/api"
)

// ErrorHandler is the interface for error handling.
// Different implementations can handle errors differently based on context.
type ErrorHandler interface {
	Error(msg string)
	Warning(msg string)
	Info(msg string)
	Success(msg string)
}

// ColorOutput is the subset of the colors package used by CLIHandler.
type ColorOutput interface {
	Error(msgs ...string)
	Warning(msgs ...string)
	Info(msgs ...string)
	Success(msgs ...string)
}

// CLIHandler prints messages to stdout/stderr.
type CLIHandler struct {
	colors ColorOutput
}

func NewCLIHandler(colors ColorOutput) *CLIHandler {
	return &CLIHandler{colors: colors}
}

func (h *CLIHandler) Error(msg string)   { h.colors.Error(msg) }
func (h *CLIHandler) Warning(msg string) { h.colors.Warning(msg) }
func (h *CLIHandler) Info(msg string)    { h.colors.Info(msg) }
func (h *CLIHandler) Success(msg string) { h.colors.Success(msg) }

// Describe turns err into a message a user can act on.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var opErr *net.OpError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return "request timed out: " + err.Error()
	case api.IsUnauthorized(err):
		return "server rejected the credentials, check api_token: " + err.Error()
	case stderrors.Is(err, api.ErrNotFound):
		return "not found: " + err.Error()
	case stderrors.As(err, &opErr):
		return "server unreachable: " + err.Error()
	}
	return err.Error()
}

// Report sends a described error to h. A nil error is ignored.
func Report(h ErrorHandler, err error) {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return
	}
	h.Error(Describe(err))
}
