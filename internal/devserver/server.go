// Package devserver is a reference implementation of the dashboard REST and
// push surface, backed by sqlite. Every mutation publishes fresh
// dashboard_update and notifications_update messages to connected streams.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/stream"
)

const (
	// DefaultHeartbeat is the interval between heartbeat messages.
	DefaultHeartbeat = 25 * time.Second

	healthPath      = "/healthz"
	shutdownTimeout = 5 * time.Second
)

// Store is the persistence the server needs.
type Store interface {
	Snapshot(ctx context.Context) (domain.DashboardSnapshot, error)
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	AddNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	MarkRead(ctx context.Context, ids []string) (int64, error)
	DeleteNotification(ctx context.Context, id string) error
	CreateProject(ctx context.Context, id string, p domain.NewProject) (domain.Project, error)
	SetProjectStatus(ctx context.Context, id string, status domain.ProjectStatus) (domain.Project, error)
}

// Option configures a Server.
type Option func(*Server)

// WithHeartbeat sets the heartbeat interval. Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// WithMiddlewares adds middleware after the built-in ones.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithIDGenerator replaces uuid generation, for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// Server serves the REST endpoints and both push streams.
type Server struct {
	store         Store
	dashboard     *Broadcaster
	notifications *Broadcaster
	heartbeat     time.Duration
	middlewares   []func(http.Handler) http.Handler
	logger        logging.Logger
	newID         func() string
	router        *chi.Mux
}

// NewServer creates the server and its routes.
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:         store,
		dashboard:     NewBroadcaster(),
		notifications: NewBroadcaster(),
		heartbeat:     DefaultHeartbeat,
		logger:        logging.Nop(),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "devserver")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))
	for _, mw := range s.middlewares {
		r.Use(mw)
	}

	r.Get(healthPath, s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard/stats", s.handleStats)
		r.Get("/dashboard/stream", s.streamHandler("dashboard", s.dashboard))

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications", s.handleCreateNotification)
		r.Put("/notifications", s.handleMarkRead)
		r.Delete("/notifications/{id}", s.handleDeleteNotification)
		r.Get("/notifications/stream", s.streamHandler("notifications", s.notifications))

		r.Post("/projects", s.handleCreateProject)
		r.Patch("/projects/{id}", s.handleSetProjectStatus)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Clients returns the number of open dashboard and notification streams.
func (s *Server) Clients() (dashboard, notifications int) {
	return s.dashboard.Len(), s.notifications.Len()
}

// Close disconnects every open stream.
func (s *Server) Close() {
	s.dashboard.Close()
	s.notifications.Close()
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("reference server listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down reference server: %w", err)
	}
	return nil
}

// publish pushes the current dashboard and notification state to every
// stream. Load failures are reported to clients as error messages.
func (s *Server) publish(ctx context.Context) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Error("failed to load dashboard snapshot", "error", err)
		s.dashboard.Publish(stream.ServerError{Message: "failed to load dashboard"})
	} else {
		s.dashboard.Publish(stream.DashboardUpdate{Snapshot: snapshot})
	}
	s.publishNotifications(ctx)
}

func (s *Server) publishNotifications(ctx context.Context) {
	list, err := s.store.ListNotifications(ctx)
	if err != nil {
		s.logger.Error("failed to load notifications", "error", err)
		s.notifications.Publish(stream.ServerError{Message: "failed to load notifications"})
		return
	}
	s.notifications.Publish(stream.NotificationsUpdate{
		Notifications: list,
		UnreadCount:   domain.CountUnread(list),
	})
}
