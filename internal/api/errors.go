package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// ErrNotFound matches any *HTTPError with status 404.
var ErrNotFound = domain.ErrNotFound

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	// Message is the server's error text, when the body carried one.
	Message string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d for URL %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *HTTPError) Is(target error) bool {
	return target == domain.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		URL:        url,
		Message:    message,
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the server rejected the credentials.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

const maxErrorBody = 4 << 10

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        resp.Request.URL.String(),
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		httpErr.Message = payload.Error
		if httpErr.Message == "" {
			httpErr.Message = payload.Message
		}
	}
	if httpErr.Message == "" {
		httpErr.Message = strings.TrimSpace(string(body))
	}
	return httpErr
}
