// Package stream implements the push channel: a Server-Sent Events
// connection whose data frames carry typed dashboard messages.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// Kind is the value of the envelope "type" field.
type Kind string

const (
	KindConnected           Kind = "connected"
	KindDashboardUpdate     Kind = "dashboard_update"
	KindNotificationsUpdate Kind = "notifications_update"
	KindError               Kind = "error"
	KindHeartbeat           Kind = "heartbeat"
)

// Message is one decoded push message. The set of implementations is closed:
// Connected, DashboardUpdate, NotificationsUpdate, ServerError and Heartbeat.
type Message interface {
	Kind() Kind
	sealed()
}

// Connected is the server's handshake acknowledgement.
type Connected struct {
	Reason string
}

// DashboardUpdate replaces the dashboard state wholesale.
type DashboardUpdate struct {
	Snapshot domain.DashboardSnapshot
}

// NotificationsUpdate replaces the notification list wholesale.
type NotificationsUpdate struct {
	Notifications []domain.Notification
	UnreadCount   int
}

// ServerError is a fault reported by the server; the channel stays open.
type ServerError struct {
	Message string
}

// Heartbeat only proves liveness.
type Heartbeat struct{}

func (Connected) Kind() Kind           { return KindConnected }
func (DashboardUpdate) Kind() Kind     { return KindDashboardUpdate }
func (NotificationsUpdate) Kind() Kind { return KindNotificationsUpdate }
func (ServerError) Kind() Kind         { return KindError }
func (Heartbeat) Kind() Kind           { return KindHeartbeat }

func (Connected) sealed()           {}
func (DashboardUpdate) sealed()     {}
func (NotificationsUpdate) sealed() {}
func (ServerError) sealed()         {}
func (Heartbeat) sealed()           {}

// UnknownKindError is returned by Decode for an envelope type it does not know.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}

// ErrMalformed wraps envelopes that are not valid JSON or miss required data.
var ErrMalformed = errors.New("malformed message")

type envelope struct {
	Type    Kind            `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
}

type notificationsData struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

// Decode parses one envelope.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Type {
	case KindConnected:
		return Connected{Reason: env.Reason}, nil
	case KindDashboardUpdate:
		var snapshot domain.DashboardSnapshot
		if err := decodeData(env, &snapshot); err != nil {
			return nil, err
		}
		return DashboardUpdate{Snapshot: snapshot}, nil
	case KindNotificationsUpdate:
		var payload notificationsData
		if err := decodeData(env, &payload); err != nil {
			return nil, err
		}
		if payload.Notifications == nil {
			payload.Notifications = []domain.Notification{}
		}
		domain.SortNewestFirst(payload.Notifications)
		return NotificationsUpdate{Notifications: payload.Notifications, UnreadCount: payload.UnreadCount}, nil
	case KindError:
		return ServerError{Message: env.Message}, nil
	case KindHeartbeat:
		return Heartbeat{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, &UnknownKindError{Kind: string(env.Type)}
	}
}

func decodeData(env envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %s without data", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

// Encode builds the envelope for msg. It is the inverse of Decode.
func Encode(msg Message) ([]byte, error) {
	env := envelope{Type: msg.Kind()}
	var data any
	switch m := msg.(type) {
	case Connected:
		env.Reason = m.Reason
	case DashboardUpdate:
		data = m.Snapshot
	case NotificationsUpdate:
		data = notificationsData{Notifications: m.Notifications, UnreadCount: m.UnreadCount}
	case ServerError:
		env.Message = m.Message
	case Heartbeat:
	default:
		return nil, fmt.Errorf("cannot encode message of type %T", msg)
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s data: %w", env.Type, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
