// Package desktop shows native notifications through whatever the host
// offers: notify-send on Linux, osascript on macOS, or the tmux status line.
package desktop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cristianoliveira/dashsync/internal/logging"
)

// DefaultTimeout bounds one notification command.
const DefaultTimeout = 5 * time.Second

// maxBody keeps messages readable in small popups.
const maxBody = 200

// Runner executes a command and returns its stderr on failure.
type Runner func(ctx context.Context, name string, args ...string) error

// CommandNotifier implements notifications by running host commands.
type CommandNotifier struct {
	goos     string
	getenv   func(string) string
	lookPath func(string) (string, error)
	run      Runner
	timeout  time.Duration
	logger   logging.Logger
}

// Option configures a CommandNotifier.
type Option func(*CommandNotifier)

// WithRunner replaces command execution.
func WithRunner(r Runner) Option {
	return func(n *CommandNotifier) { n.run = r }
}

// WithLookPath replaces executable lookup.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(n *CommandNotifier) { n.lookPath = fn }
}

// WithEnv replaces environment lookup and the operating system name.
func WithEnv(goos string, getenv func(string) string) Option {
	return func(n *CommandNotifier) {
		n.goos = goos
		n.getenv = getenv
	}
}

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *CommandNotifier) { n.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(n *CommandNotifier) { n.logger = l }
}

// NewCommandNotifier returns a notifier for the current host.
func NewCommandNotifier(opts ...Option) *CommandNotifier {
	n := &CommandNotifier{
		goos:     runtime.GOOS,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		run:      runCommand,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = logging.Component(n.logger, "desktop")
	return n
}

// Backend names the command used for notifications, or "" if none is usable.
func (n *CommandNotifier) Backend() string {
	switch {
	case n.getenv("TMUX") != "" && n.has("tmux"):
		return "tmux"
	case n.goos == "darwin" && n.has("osascript"):
		return "osascript"
	case n.goos == "linux" && n.has("notify-send") &&
		(n.getenv("DISPLAY") != "" || n.getenv("WAYLAND_DISPLAY") != ""):
		return "notify-send"
	}
	return ""
}

// Available reports whether any backend can be used.
func (n *CommandNotifier) Available() bool {
	return n.Backend() != ""
}

// Notify shows one notification.
func (n *CommandNotifier) Notify(ctx context.Context, title, body string) error {
	body = truncate(strings.TrimSpace(body), maxBody)
	var (
		name string
		args []string
	)
	switch backend := n.Backend(); backend {
	case "tmux":
		name, args = "tmux", []string{"display-message", fmt.Sprintf("%s: %s", title, body)}
	case "osascript":
		name, args = "osascript", []string{"-e", fmt.Sprintf("display notification %s with title %s", quote(body), quote(title))}
	case "notify-send":
		name, args = "notify-send", []string{"--app-name=dashsync", title, body}
	default:
		return fmt.Errorf("no desktop notification backend available")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	start := time.Now()
	err := n.run(ctx, name, args...)
	n.logger.Debug("desktop notification", "backend", name, "duration", time.Since(start), "error", err)
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func (n *CommandNotifier) has(cmd string) bool {
	_, err := n.lookPath(cmd)
	return err == nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// quote renders s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
