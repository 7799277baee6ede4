package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/config"
	"github.com/cristianoliveira/dashsync/internal/devserver"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/storage/sqlite"
)

// ServeDevOptions configures the reference server.
type ServeDevOptions struct {
	Addr      string
	DBPath    string
	Heartbeat time.Duration
	RateLimit float64
	RateBurst int
	Token     string
	Logger    logging.Logger
	// Listener overrides Addr when set.
	Listener net.Listener
}

// ServeDevOptionsFromConfig reads the reference server options from the
// loaded configuration.
func ServeDevOptionsFromConfig() ServeDevOptions {
	return ServeDevOptions{
		Addr:      config.Get("devserver_addr", ":3000"),
		DBPath:    config.Get("devserver_db_path", ""),
		Heartbeat: config.GetDuration("heartbeat_interval", devserver.DefaultHeartbeat),
		RateLimit: config.GetFloat("devserver_rate_limit", 20),
		RateBurst: config.GetInt("devserver_rate_burst", 40),
		Token:     config.Get("api_token", ""),
	}
}

// ServeDevUseCase runs the reference dashboard server.
type ServeDevUseCase struct{}

// NewServeDevUseCase creates a serve-dev use-case.
func NewServeDevUseCase() *ServeDevUseCase {
	return &ServeDevUseCase{}
}

// Execute opens the database and serves until ctx is cancelled.
func (u *ServeDevUseCase) Execute(ctx context.Context, opts ServeDevOptions) error {
	if opts.DBPath == "" {
		return fmt.Errorf("serve-dev: database path is empty")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobal()
	}
	store, err := sqlite.NewStorage(opts.DBPath)
	if err != nil {
		return fmt.Errorf("serve-dev: %w", err)
	}
	defer store.Close()

	mws := []func(http.Handler) http.Handler{
		devserver.RateLimitMiddleware(opts.RateLimit, opts.RateBurst),
	}
	if opts.Token != "" {
		mws = append(mws, devserver.TokenMiddleware(opts.Token))
	}
	srv := devserver.NewServer(store,
		devserver.WithHeartbeat(opts.Heartbeat),
		devserver.WithLogger(opts.Logger),
		devserver.WithMiddlewares(mws...),
	)

	if opts.Listener != nil {
		colors.Info(fmt.Sprintf("Serving dashboard API on %s (db %s)", opts.Listener.Addr(), opts.DBPath))
		return srv.ServeListener(ctx, opts.Listener)
	}
	colors.Info(fmt.Sprintf("Serving dashboard API on %s (db %s)", opts.Addr, opts.DBPath))
	return srv.Serve(ctx, opts.Addr)
}
