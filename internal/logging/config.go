// Package logging provides structured file logging for dashsync.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cristianoliveira/dashsync/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Enabled  bool
	Level    string
	MaxFiles int
	// Dir overrides the log directory chosen by LogDir.
	Dir string
	// Command and PID name the log file of this process.
	Command string
	PID     int
}

// DefaultConfig returns a disabled Config at info level.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		MaxFiles: 10,
		Command:  filepath.Base(os.Args[0]),
		PID:      os.Getpid(),
	}
}

// FromGlobalConfig creates a logging Config from the global configuration.
// debug forces the debug level and quiet raises it to error; debug wins when both are set.
func FromGlobalConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = config.GetBool("logging_enabled", false)
	cfg.Level = config.Get("logging_level", cfg.Level)
	cfg.MaxFiles = config.GetInt("logging_max_files", cfg.MaxFiles)
	cfg.Dir = config.Get("logging_dir", "")
	switch {
	case config.GetBool("debug", false):
		cfg.Level = "debug"
	case config.GetBool("quiet", false):
		cfg.Level = "error"
	}
	return cfg
}

// dir resolves the directory the logger writes to.
func (c Config) dir() (string, error) {
	if c.Dir == "" {
		return LogDir()
	}
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", c.Dir, err)
	}
	return c.Dir, nil
}

// LogDir returns {state_dir}/logs when it is writable and a directory under
// the system temp dir otherwise.
func LogDir() (string, error) {
	if stateDir := config.Get("state_dir", ""); stateDir != "" {
		logDir := filepath.Join(stateDir, "logs")
		if os.MkdirAll(logDir, 0o700) == nil && writable(logDir) {
			return logDir, nil
		}
	}
	fallback := filepath.Join(os.TempDir(), "dashsync", "logs")
	if err := os.MkdirAll(fallback, 0o700); err != nil {
		return "", err
	}
	return fallback, nil
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
