// Package domain holds the value types shared by the synchronizers, the
// REST client and the reference server.
package domain

// ConnectionStatus is the state of a synchronizer's push channel.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// AllStatuses lists every connection status in display order.
var AllStatuses = []ConnectionStatus{
	StatusDisconnected,
	StatusConnecting,
	StatusConnected,
	StatusReconnecting,
}

// IsValid checks if the connection status is one of the known values.
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusReconnecting:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s ConnectionStatus) String() string {
	return string(s)
}

// IsAttempting reports whether a connect attempt is in flight.
func (s ConnectionStatus) IsAttempting() bool {
	return s == StatusConnecting || s == StatusReconnecting
}

// CanTransition reports whether the state machine may move from one status to another.
// A disconnected channel always passes through an attempt before it is connected,
// and a connected channel must drop before a new attempt starts.
func CanTransition(from, to ConnectionStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	switch from {
	case StatusDisconnected:
		return to == StatusConnecting || to == StatusReconnecting
	case StatusConnecting:
		return to == StatusConnected || to == StatusDisconnected || to == StatusReconnecting
	case StatusReconnecting:
		return to == StatusConnected || to == StatusDisconnected || to == StatusConnecting
	case StatusConnected:
		return to == StatusDisconnected
	}
	return false
}
