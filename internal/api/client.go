// Package api is the REST client for the dashboard server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/version"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout is the default timeout for REST requests.
	DefaultTimeout = 15 * time.Second

	// MaxResponseSize caps decoded response bodies (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader carries a per-request id for server-side correlation.
	RequestIDHeader = "X-Request-ID"
)

// UserAgent is the user agent string for every request.
var UserAgent = "dashsync/" + version.String()

// Client talks to the dashboard REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	stream  *http.Client
	token   string
	logger  logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithTimeout sets the timeout of REST calls. Streams are never timed out.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying REST client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the server at baseURL. Cookies set by the
// server are kept in a jar shared by REST calls and push streams.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	c.logger = logging.Component(c.logger, "api")
	c.stream = &http.Client{Jar: c.http.Jar, Transport: c.http.Transport}
	return c, nil
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves an absolute API path against the base URL.
func (c *Client) URL(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// StreamClient returns the HTTP client used for push streams. It shares the
// cookie jar and transport of the REST client but has no overall timeout.
func (c *Client) StreamClient() *http.Client {
	return c.stream
}

// StreamHeader returns the headers every push stream request must carry.
func (c *Client) StreamHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

type markReadRequest struct {
	NotificationIDs []string `json:"notificationIds,omitempty"`
}

type projectStatusRequest struct {
	Status domain.ProjectStatus `json:"status"`
}

// DashboardStats fetches GET /api/dashboard/stats.
func (c *Client) DashboardStats(ctx context.Context) (domain.DashboardSnapshot, error) {
	var snapshot domain.DashboardSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/stats", nil, &snapshot); err != nil {
		return domain.DashboardSnapshot{}, err
	}
	return snapshot, nil
}

// Notifications fetches GET /api/notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]domain.Notification, error) {
	var resp notificationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Notifications == nil {
		resp.Notifications = []domain.Notification{}
	}
	domain.SortNewestFirst(resp.Notifications)
	return resp.Notifications, nil
}

// MarkNotificationsRead calls PUT /api/notifications. No ids marks everything read.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications", markReadRequest{NotificationIDs: ids}, nil)
}

// DeleteNotification calls DELETE /api/notifications/{id}.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil)
}

// CreateProject calls POST /api/projects.
func (c *Client) CreateProject(ctx context.Context, p domain.NewProject) (domain.Project, error) {
	if err := p.Validate(); err != nil {
		return domain.Project{}, err
	}
	var created domain.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", p, &created); err != nil {
		return domain.Project{}, err
	}
	return created, nil
}

// SetProjectStatus calls PATCH /api/projects/{id}.
func (c *Client) SetProjectStatus(ctx context.Context, id string, status domain.ProjectStatus) (domain.Project, error) {
	var updated domain.Project
	path := "/api/projects/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, projectStatusRequest{Status: status}, &updated); err != nil {
		return domain.Project{}, err
	}
	return updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.StreamHeader() {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debug("request done", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil
	}
	if resp.ContentLength > MaxResponseSize {
		return fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes", resp.ContentLength, MaxResponseSize)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
