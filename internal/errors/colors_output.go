package errors

import (
	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/config"
)

// ColorsOutput writes handler messages through the colors package: errors and
// warnings to stderr, info and success to stdout.
type ColorsOutput struct {
	// Quiet drops info and success messages.
	Quiet bool
}

var _ ColorOutput = (*ColorsOutput)(nil)

func (o *ColorsOutput) Error(msgs ...string)   { colors.Error(msgs...) }
func (o *ColorsOutput) Warning(msgs ...string) { colors.Warning(msgs...) }

func (o *ColorsOutput) Info(msgs ...string) {
	if !o.Quiet {
		colors.Info(msgs...)
	}
}

func (o *ColorsOutput) Success(msgs ...string) {
	if !o.Quiet {
		colors.Success(msgs...)
	}
}

// NewDefaultCLIHandler creates a CLI handler that honours the quiet setting.
func NewDefaultCLIHandler() *CLIHandler {
	return NewCLIHandler(&ColorsOutput{Quiet: config.GetBool("quiet", false)})
}
