package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/stream"
)

const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, map[string]string{"error": message}, status)
}

// decodeBody decodes a JSON request body into out. An empty body leaves out
// untouched when allowEmpty is set.
func decodeBody(r *http.Request, out any, allowEmpty bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(out)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("failed to load dashboard snapshot", "error", err)
		writeError(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot, http.StatusOK)
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListNotifications(r.Context())
	if err != nil {
		s.logger.Error("failed to list notifications", "error", err)
		writeError(w, "failed to load notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, notificationsResponse{Notifications: list, UnreadCount: domain.CountUnread(list)}, http.StatusOK)
}

type createNotificationRequest struct {
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	Type       domain.NotificationType `json:"type"`
	ProjectID  string                  `json:"projectId"`
	ClientName string                  `json:"clientName"`
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := s.store.AddNotification(r.Context(), domain.Notification{
		ID:         s.newID(),
		Title:      req.Title,
		Message:    req.Message,
		Type:       req.Type,
		ProjectID:  req.ProjectID,
		ClientName: req.ClientName,
		Unread:     true,
	})
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.publishNotifications(r.Context())
	writeJSON(w, created, http.StatusCreated)
}

type markReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	updated, err := s.store.MarkRead(r.Context(), req.NotificationIDs)
	if err != nil {
		s.logger.Error("failed to mark notifications read", "error", err)
		writeError(w, "failed to update notifications", http.StatusInternalServerError)
		return
	}
	if updated > 0 {
		s.publishNotifications(r.Context())
	}
	writeJSON(w, map[string]int64{"updated": updated}, http.StatusOK)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteNotification(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, "notification not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("failed to delete notification", "error", err)
		writeError(w, "failed to delete notification", http.StatusInternalServerError)
		return
	}
	s.publishNotifications(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req domain.NewProject
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	project, err := s.store.CreateProject(r.Context(), s.newID(), req)
	switch {
	case errors.Is(err, domain.ErrInvalidProject):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("failed to create project", "error", err)
		writeError(w, "failed to create project", http.StatusInternalServerError)
		return
	}
	s.notify(r, domain.Notification{
		Title:      "New project",
		Message:    fmt.Sprintf("%s for %s was created", project.Name, project.ClientName),
		Type:       domain.TypeProject,
		ProjectID:  project.ID,
		ClientName: project.ClientName,
	})
	s.publish(r.Context())
	writeJSON(w, project, http.StatusCreated)
}

type projectStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetProjectStatus(w http.ResponseWriter, r *http.Request) {
	var req projectStatusRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	status, err := domain.ParseProjectStatus(req.Status)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	project, err := s.store.SetProjectStatus(r.Context(), chi.URLParam(r, "id"), status)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, "project not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("failed to update project", "error", err)
		writeError(w, "failed to update project", http.StatusInternalServerError)
		return
	}
	if status == domain.ProjectCompleted {
		s.notify(r, domain.Notification{
			Title:      "Project completed",
			Message:    fmt.Sprintf("%s for %s is complete", project.Name, project.ClientName),
			Type:       domain.TypeSuccess,
			ProjectID:  project.ID,
			ClientName: project.ClientName,
		})
	}
	s.publish(r.Context())
	writeJSON(w, project, http.StatusOK)
}

// notify stores a server generated notification. Failures are logged only;
// the triggering mutation already succeeded.
func (s *Server) notify(r *http.Request, n domain.Notification) {
	n.ID = s.newID()
	n.Unread = true
	if _, err := s.store.AddNotification(r.Context(), n); err != nil {
		s.logger.Warn("failed to store notification", "title", n.Title, "error", err)
	}
}

// streamHandler serves one push stream: a connected greeting, then every
// published message, with heartbeats in between.
func (s *Server) streamHandler(name string, bus *Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		send := func(msg stream.Message) bool {
			data, err := stream.Encode(msg)
			if err != nil {
				s.logger.Error("failed to encode push message", "stream", name, "error", err)
				return true
			}
			if err := stream.WriteEvent(w, string(msg.Kind()), data); err != nil {
				return false
			}
			return rc.Flush() == nil
		}
		if !send(stream.Connected{Reason: name}) {
			return
		}
		s.logger.Debug("stream opened", "stream", name, "remote", r.RemoteAddr)
		defer s.logger.Debug("stream closed", "stream", name, "remote", r.RemoteAddr)

		var tick <-chan time.Time
		if s.heartbeat > 0 {
			ticker := time.NewTicker(s.heartbeat)
			defer ticker.Stop()
			tick = ticker.C
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok || !send(msg) {
					return
				}
			case <-tick:
				if !send(stream.Heartbeat{}) {
					return
				}
			}
		}
	}
}
