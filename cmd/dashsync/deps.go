package main

import (
	"sync"

	"github.com/cristianoliveira/dashsync/internal/app"
	"github.com/cristianoliveira/dashsync/internal/logging"
)

// runtimeFunc returns the client runtime. Commands call it from RunE, after
// the root command loaded configuration.
type runtimeFunc func() (*app.Runtime, error)

var (
	runtimeOnce   sync.Once
	sharedRuntime *app.Runtime
	runtimeErr    error
)

func defaultRuntime() (*app.Runtime, error) {
	runtimeOnce.Do(func() {
		sharedRuntime, runtimeErr = app.NewRuntime(app.SettingsFromConfig(), logging.GetGlobal())
	})
	return sharedRuntime, runtimeErr
}
