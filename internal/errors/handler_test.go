package errors

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockColorOutput records the last message per level.
type mockColorOutput struct {
	mu    sync.Mutex
	calls map[string]string
}

func newMockColorOutput() *mockColorOutput {
	return &mockColorOutput{calls: map[string]string{}}
}

func (m *mockColorOutput) record(level string, msgs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(msgs) > 0 {
		m.calls[level] = msgs[0]
	}
}

func (m *mockColorOutput) Error(msgs ...string)   { m.record("error", msgs) }
func (m *mockColorOutput) Warning(msgs ...string) { m.record("warning", msgs) }
func (m *mockColorOutput) Info(msgs ...string)    { m.record("info", msgs) }
func (m *mockColorOutput) Success(msgs ...string) { m.record("success", msgs) }

func TestCLIHandlerForwardsEveryLevel(t *testing.T) {
	mock := newMockColorOutput()
	handler := NewCLIHandler(mock)

	handler.Error("test error")
	handler.Warning("test warning")
	handler.Info("test info")
	handler.Success("test success")

	assert.Equal(t, map[string]string{
		"error":   "test error",
		"warning": "test warning",
		"info":    "test info",
		"success": "test success",
	}, mock.calls)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", fmt.Errorf("GET /x: %w", context.DeadlineExceeded), "request timed out"},
		{"unauthorized", api.NewHTTPError(http.StatusUnauthorized, "http://x", ""), "check api_token"},
		{"not found", api.NewHTTPError(http.StatusNotFound, "http://x", "gone"), "not found:"},
		{"unreachable", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}, "server unreachable"},
		{"other", fmt.Errorf("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == "" {
				assert.Empty(t, Describe(tt.err))
				return
			}
			assert.Contains(t, Describe(tt.err), tt.want)
		})
	}
}

func TestReport(t *testing.T) {
	handler := NewTUIHandler(nil)

	Report(handler, nil)
	Report(handler, context.Canceled)
	_, ok := handler.GetLatest()
	require.False(t, ok, "nil and canceled errors are not reported")

	Report(handler, fmt.Errorf("refresh failed"))
	latest, ok := handler.GetLatest()
	require.True(t, ok)
	assert.Equal(t, MessageTypeError, latest.Type)
	assert.Equal(t, "refresh failed", latest.Text)
}

func TestTUIHandlerStoresTypedMessages(t *testing.T) {
	var seen []Message
	handler := NewTUIHandler(func(msg Message) { seen = append(seen, msg) })

	handler.Error("error message")
	handler.Warning("warning message")
	handler.Info("info message")
	handler.Success("success message")

	all := handler.GetAll()
	require.Len(t, all, 4)
	assert.Equal(t, seen, all)
	assert.Equal(t, MessageTypeError, all[0].Type)
	assert.Equal(t, MessageTypeWarning, all[1].Type)
	assert.Equal(t, MessageTypeInfo, all[2].Type)
	assert.Equal(t, MessageTypeSuccess, all[3].Type)
	assert.False(t, all[0].Timestamp.IsZero())

	latest, ok := handler.GetLatest()
	require.True(t, ok)
	assert.Equal(t, "success message", latest.Text)

	handler.Clear()
	assert.Empty(t, handler.GetAll())
}

func TestTUIHandlerKeepsBoundedHistory(t *testing.T) {
	handler := NewTUIHandler(nil)
	for i := 0; i < maxMessages+10; i++ {
		handler.Info(fmt.Sprintf("message %d", i))
	}

	all := handler.GetAll()
	require.Len(t, all, maxMessages)
	assert.Equal(t, "message 10", all[0].Text)
	assert.Equal(t, fmt.Sprintf("message %d", maxMessages+9), all[len(all)-1].Text)
}

func TestTUIHandlerConcurrentAccess(t *testing.T) {
	handler := NewTUIHandler(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				handler.Info("message from goroutine")
			}
		}()
		go func() {
			defer wg.Done()
			_ = handler.GetAll()
			_, _ = handler.GetLatest()
		}()
	}
	wg.Wait()

	assert.Len(t, handler.GetAll(), maxMessages)
}
