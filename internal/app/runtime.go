package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/cristianoliveira/dashsync/internal/config"
	"github.com/cristianoliveira/dashsync/internal/connection"
	"github.com/cristianoliveira/dashsync/internal/dashboard"
	"github.com/cristianoliveira/dashsync/internal/desktop"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/metrics"
	"github.com/cristianoliveira/dashsync/internal/notifications"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
	"github.com/cristianoliveira/dashsync/internal/syncer"
)

// Settings are the client side options read from configuration.
type Settings struct {
	ServerURL               string
	APIToken                string
	DashboardStreamPath     string
	NotificationsStreamPath string
	RequestTimeout          time.Duration
	StrictMessages          bool
	Scheduler               connection.Config
	HintRate                float64
	HintBurst               int
	DesktopNotifications    bool
	MetricsAddr             string
}

// SettingsFromConfig reads Settings from the loaded configuration.
func SettingsFromConfig() Settings {
	defaults := connection.DefaultConfig()
	return Settings{
		ServerURL:               config.Get("server_url", "http://localhost:3000"),
		APIToken:                config.Get("api_token", ""),
		DashboardStreamPath:     config.Get("dashboard_stream_path", "/api/dashboard/stream"),
		NotificationsStreamPath: config.Get("notifications_stream_path", "/api/notifications/stream"),
		RequestTimeout:          config.GetDuration("request_timeout", api.DefaultTimeout),
		StrictMessages:          config.GetBool("strict_messages", false),
		Scheduler: connection.Config{
			PollInterval:     config.GetDuration("poll_interval", defaults.PollInterval),
			PollJitter:       config.GetDuration("poll_jitter", defaults.PollJitter),
			ReconnectEnabled: config.GetBool("reconnect_enabled", defaults.ReconnectEnabled),
			ReconnectInitial: config.GetDuration("reconnect_initial", defaults.ReconnectInitial),
			ReconnectMax:     config.GetDuration("reconnect_max", defaults.ReconnectMax),
		},
		HintRate:             config.GetFloat("hint_rate", float64(refreshbus.DefaultHintRate)),
		HintBurst:            config.GetInt("hint_burst", refreshbus.DefaultHintBurst),
		DesktopNotifications: config.GetBool("desktop_notifications", false),
		MetricsAddr:          config.Get("metrics_addr", ""),
	}
}

// Runtime holds the shared client side dependencies of one process: the
// REST client, the refresh bus and the metrics recorder.
type Runtime struct {
	Settings Settings
	Client   *api.Client
	Bus      *refreshbus.Registry
	Metrics  *metrics.Recorder
	Logger   logging.Logger
}

// NewRuntime builds the runtime for s. A nil logger uses the global one.
func NewRuntime(s Settings, logger logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.GetGlobal()
	}
	client, err := api.NewClient(s.ServerURL,
		api.WithToken(s.APIToken),
		api.WithTimeout(s.RequestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	rec := metrics.NewRecorder()
	burst := s.HintBurst
	if burst < 1 {
		burst = refreshbus.DefaultHintBurst
	}
	bus := refreshbus.NewRegistry(
		refreshbus.WithHintLimit(rate.Limit(s.HintRate), burst),
		refreshbus.WithLogger(logger),
		refreshbus.WithMetrics(rec),
	)
	return &Runtime{
		Settings: s,
		Client:   client,
		Bus:      bus,
		Metrics:  rec,
		Logger:   logger,
	}, nil
}

func (r *Runtime) syncSettings(name, path string) syncer.Settings {
	return syncer.Settings{
		Name:             name,
		StreamURL:        r.Client.URL(path),
		StreamClient:     r.Client.StreamClient(),
		StreamHeader:     r.Client.StreamHeader(),
		Strict:           r.Settings.StrictMessages,
		HandshakeTimeout: r.Settings.RequestTimeout,
		Scheduler:        r.Settings.Scheduler,
		Logger:           r.Logger,
		Metrics:          r.Metrics,
	}
}

// Dashboard creates a dashboard synchronizer bound to this runtime.
func (r *Runtime) Dashboard() *dashboard.Synchronizer {
	return dashboard.New(r.Client, r.syncSettings("dashboard", r.Settings.DashboardStreamPath), r.Bus)
}

// Notifications creates a notification synchronizer bound to this runtime.
// Desktop forwarding is wired when enabled and the host supports it.
func (r *Runtime) Notifications() *notifications.Synchronizer {
	var opts []notifications.Option
	if r.Settings.DesktopNotifications {
		opts = append(opts, notifications.WithDesktop(desktop.NewCommandNotifier(desktop.WithLogger(r.Logger))))
	}
	s := notifications.New(r.Client, r.syncSettings("notifications", r.Settings.NotificationsStreamPath), r.Bus, opts...)
	if r.Settings.DesktopNotifications {
		s.RequestDesktopPermission()
	}
	return s
}

// ServeMetrics exposes /metrics until ctx is done. It returns at once when
// no metrics address is configured.
func (r *Runtime) ServeMetrics(ctx context.Context) error {
	if r.Settings.MetricsAddr == "" {
		return nil
	}
	r.Logger.Info("serving metrics", "addr", r.Settings.MetricsAddr)
	if err := r.Metrics.Serve(ctx, r.Settings.MetricsAddr); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
