package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianoliveira/dashsync/internal/config"
)

// loadConfig points the state dir at a temp dir and loads configuration
// with env applied as DASHSYNC_* variables.
func loadConfig(t *testing.T, env map[string]string) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmp)
	t.Setenv("HOME", tmp)
	t.Setenv("DASHSYNC_CONFIG_PATH", filepath.Join(tmp, "missing.toml"))
	for k, v := range env {
		t.Setenv("DASHSYNC_"+k, v)
	}
	config.Load()
	return tmp
}

// fileConfig returns an enabled config writing into its own temp dir.
func fileConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Dir = t.TempDir()
	cfg.Command = "dashsync watch"
	return cfg
}

func lastEntry(t *testing.T, dir string) map[string]any {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	data, err := os.ReadFile(filepath.Join(dir, entries[len(entries)-1].Name()))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestFromGlobalConfig(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantLevel string
		wantMax   int
		enabled   bool
	}{
		{name: "defaults", wantLevel: "info", wantMax: 10},
		{
			name:      "explicit",
			env:       map[string]string{"LOGGING_ENABLED": "true", "LOGGING_LEVEL": "warn", "LOGGING_MAX_FILES": "5"},
			wantLevel: "warn", wantMax: 5, enabled: true,
		},
		{name: "debug flag", env: map[string]string{"DEBUG": "true"}, wantLevel: "debug", wantMax: 10},
		{name: "quiet flag", env: map[string]string{"QUIET": "true"}, wantLevel: "error", wantMax: 10},
		{name: "debug beats quiet", env: map[string]string{"DEBUG": "true", "QUIET": "true"}, wantLevel: "debug", wantMax: 10},
		{name: "invalid max files", env: map[string]string{"LOGGING_MAX_FILES": "0"}, wantLevel: "info", wantMax: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loadConfig(t, tt.env)

			cfg := FromGlobalConfig()
			assert.Equal(t, tt.enabled, cfg.Enabled)
			assert.Equal(t, tt.wantLevel, cfg.Level)
			assert.Equal(t, tt.wantMax, cfg.MaxFiles)
			assert.Equal(t, os.Getpid(), cfg.PID)
		})
	}
}

func TestLogDirUsesStateDir(t *testing.T) {
	tmp := loadConfig(t, nil)

	logDir, err := LogDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "dashsync", "logs"), logDir)
	info, err := os.Stat(logDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestLogDirFallsBackToTemp(t *testing.T) {
	loadConfig(t, map[string]string{"STATE_DIR": "/proc/dashsync-nope"})

	logDir, err := LogDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(logDir, os.TempDir()))
	assert.True(t, strings.HasSuffix(logDir, filepath.Join("dashsync", "logs")))
}

func TestLoggingDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom")
	loadConfig(t, map[string]string{"LOGGING_ENABLED": "true", "LOGGING_DIR": dir})

	logger, err := Init(FromGlobalConfig())
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, logger.Shutdown())

	assert.Equal(t, "hello", lastEntry(t, dir)["msg"])
}

func TestInitDisabledIsNoop(t *testing.T) {
	logger, err := Init(Config{})
	require.NoError(t, err)
	assert.IsType(t, noopLogger{}, logger)
	logger.Info("ignored")
	assert.NoError(t, logger.Shutdown())
}

func TestInitWritesJSONFile(t *testing.T) {
	cfg := fileConfig(t)

	logger, err := Init(cfg)
	require.NoError(t, err)
	logger.With("component", "scheduler").Info("fallback polling started", "interval", "5m", "attempt", 2)
	require.NoError(t, logger.Shutdown())

	entries, err := os.ReadDir(cfg.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.True(t, strings.HasPrefix(name, "dashsync_"))
	assert.Contains(t, name, fmt.Sprintf("_PID%d_", os.Getpid()))
	assert.True(t, strings.HasSuffix(name, "_dashsync_watch.log"))
	info, err := os.Stat(filepath.Join(cfg.Dir, name))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entry := lastEntry(t, cfg.Dir)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fallback polling started", entry["msg"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, float64(os.Getpid()), entry["pid"])
	assert.Equal(t, "dashsync watch", entry["command"])
}

func TestInitRedactsSecrets(t *testing.T) {
	cfg := fileConfig(t)

	logger, err := Init(cfg)
	require.NoError(t, err)
	logger.Info("request", "api_token", "abc", "authorization", "Bearer abc", "path", "/api/notifications")
	require.NoError(t, logger.Shutdown())

	entry := lastEntry(t, cfg.Dir)
	assert.Equal(t, "[REDACTED]", entry["api_token"])
	assert.Equal(t, "/api/notifications", entry["path"])
}

func TestRedactor(t *testing.T) {
	r := newRedactor()
	tests := []struct {
		in   []any
		want []any
	}{
		{in: []any{"password", "x"}, want: []any{"password", "[REDACTED]"}},
		{in: []any{"PaSsWoRd", "x"}, want: []any{"PaSsWoRd", "[REDACTED]"}},
		{in: []any{"api-token", "x"}, want: []any{"api-token", "[REDACTED]"}},
		{in: []any{"api.token", "x"}, want: []any{"api.token", "[REDACTED]"}},
		{in: []any{"apitoken", "x"}, want: []any{"apitoken", "x"}},
		{in: []any{"secretary", "x"}, want: []any{"secretary", "x"}},
		{in: []any{"token", "a", "status", "connected"}, want: []any{"token", "[REDACTED]", "status", "connected"}},
		{in: []any{"password", "x", "dangling"}, want: []any{"password", "[REDACTED]", "dangling"}},
		{in: []any{}, want: []any{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.redact(tt.in), "%v", tt.in)
	}
}

func touchLogs(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("dashsync_20260101_12000%d_PID999_old.log", i))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		mtime := time.Now().Add(-time.Duration(i+1) * time.Hour)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestInitRotatesOldFiles(t *testing.T) {
	cfg := fileConfig(t)
	cfg.MaxFiles = 2
	touchLogs(t, cfg.Dir, 3)

	logger, err := Init(cfg)
	require.NoError(t, err)
	require.NoError(t, logger.Shutdown())

	entries, err := os.ReadDir(cfg.Dir)
	require.NoError(t, err)
	// two kept plus the new file
	assert.Len(t, entries, 3)
	_, err = os.Stat(filepath.Join(cfg.Dir, "dashsync_20260101_120002_PID999_old.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitKeepsFilesUnderLimit(t *testing.T) {
	cfg := fileConfig(t)
	touchLogs(t, cfg.Dir, 5)

	logger, err := Init(cfg)
	require.NoError(t, err)
	require.NoError(t, logger.Shutdown())

	entries, err := os.ReadDir(cfg.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 6)
}

func TestGlobalLogger(t *testing.T) {
	dir := t.TempDir()
	loadConfig(t, map[string]string{"LOGGING_ENABLED": "true", "LOGGING_DIR": dir})

	require.NoError(t, InitGlobal())
	Info("global info")
	Warn("global warning", "count", 1)
	require.NoError(t, ShutdownGlobal())

	assert.Equal(t, "global warning", lastEntry(t, dir)["msg"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]clog.Level{
		"debug":   clog.DebugLevel,
		"info":    clog.InfoLevel,
		"warn":    clog.WarnLevel,
		"warning": clog.WarnLevel,
		"error":   clog.ErrorLevel,
		"unknown": clog.InfoLevel,
	} {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("dropped by level")
	logger.With("component", "stream").Warn("unknown message kind", "kind", "presence", "api_token", "abc")

	out := buf.String()
	assert.NotContains(t, out, "dropped by level")
	assert.Contains(t, out, `"component":"stream"`)
	assert.Contains(t, out, `"kind":"presence"`)
	assert.Contains(t, out, `"api_token":"[REDACTED]"`)
}

func TestComponentFallsBackToGlobal(t *testing.T) {
	require.NotNil(t, Component(nil, "scheduler"))

	var buf bytes.Buffer
	Component(New(&buf, "debug"), "bus").Debug("trigger")
	assert.Contains(t, buf.String(), `"component":"bus"`)
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Info("ignored")
	assert.NoError(t, l.With("a", 1).Shutdown())
}
