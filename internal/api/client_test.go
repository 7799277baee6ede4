package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url")
	require.Error(t, err)

	_, err = NewClient("/relative")
	require.Error(t, err)
}

func TestDashboardStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/dashboard/stats", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"stats":{"totalProjects":5,"totalEarnings":1200.5},"recentProjects":[{"id":"p1","name":"Site","clientName":"Acme","status":"active"}]}`)
	}, WithToken("secret"))

	snapshot, err := c.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Stats.TotalProjects)
	assert.Equal(t, 1200.5, snapshot.Stats.TotalEarnings)
	require.Len(t, snapshot.RecentProjects, 1)
	assert.Equal(t, domain.ProjectActive, snapshot.RecentProjects[0].Status)
}

func TestNotifications_SortedNewestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"notifications":[
			{"id":"old","title":"a","time":"2026-01-01T10:00:00Z","unread":true,"type":"info"},
			{"id":"new","title":"b","time":"2026-01-02T10:00:00Z","unread":false,"type":"invoice"}
		],"unreadCount":1}`)
	})

	list, err := c.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, domain.TypeInvoice, list[0].Type)
}

func TestNotifications_EmptyListIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"unreadCount":0}`)
	})
	list, err := c.Notifications(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestMarkNotificationsRead(t *testing.T) {
	var bodies []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.MarkNotificationsRead(context.Background(), []string{"1", "2"}))
	require.NoError(t, c.MarkNotificationsRead(context.Background(), nil))

	assert.JSONEq(t, `{"notificationIds":["1","2"]}`, bodies[0])
	assert.JSONEq(t, `{}`, bodies[1])
}

func TestDeleteNotification_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/notifications/n 1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "notification not found"})
	})

	err := c.DeleteNotification(context.Background(), "n 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "notification not found", httpErr.Message)
	assert.Contains(t, httpErr.Error(), "HTTP 404")
}

func TestHTTPError_PlainTextBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database locked", http.StatusInternalServerError)
	})

	_, err := c.DashboardStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Contains(t, err.Error(), "database locked")
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(NewHTTPError(http.StatusUnauthorized, "u", "")))
	assert.True(t, IsUnauthorized(NewHTTPError(http.StatusForbidden, "u", "")))
	assert.False(t, IsUnauthorized(errors.New("boom")))
	assert.Equal(t, 0, StatusCode(nil))
}

func TestCreateProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var p domain.NewProject
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Project{ID: "p9", Name: p.Name, ClientName: p.ClientName, Status: domain.ProjectPlanning})
	})

	created, err := c.CreateProject(context.Background(), domain.NewProject{Name: "Logo", ClientName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "p9", created.ID)

	_, err = c.CreateProject(context.Background(), domain.NewProject{})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)
}

func TestSetProjectStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/projects/p1", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"p1","status":"completed"}`)
	})

	p, err := c.SetProjectStatus(context.Background(), "p1", domain.ProjectCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectCompleted, p.Status)
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, WithTimeout(20*time.Millisecond))

	_, err := c.DashboardStats(context.Background())
	require.Error(t, err)
}

func TestCookiesAreSharedWithStreams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_, _ = io.WriteString(w, `{"stats":{}}`)
	})

	_, err := c.DashboardStats(context.Background())
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, c.URL("/api/dashboard/stream"), nil)
	require.NoError(t, err)
	cookies := c.StreamClient().Jar.Cookies(req.URL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.Zero(t, c.StreamClient().Timeout)
}
