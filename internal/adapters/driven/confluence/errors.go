package confluence

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
)

// maxErrorMessage bounds how much of an error body is kept. Reverse
// proxies answer with whole HTML pages.
const maxErrorMessage = 300

// APIError is a non-2xx response from the Confluence REST API.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("confluence: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap ties the response status into the domain error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return domain.ErrConflict
	case e.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "already exists"):
		// The server reports title collisions as 400 with a message,
		// not as 409.
		return domain.ErrConflict
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= http.StatusInternalServerError:
		return domain.ErrTransient
	default:
		return domain.ErrPermanent
	}
}

// newAPIError builds an APIError from a failed response, preferring the
// server's JSON message over the raw body.
func newAPIError(resp *http.Response, body []byte) *APIError {
	message := strings.TrimSpace(string(body))
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && strings.TrimSpace(parsed.Message) != "" {
		message = strings.TrimSpace(parsed.Message)
	}
	if len(message) > maxErrorMessage {
		message = message[:maxErrorMessage] + "..."
	}

	reqURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		reqURL = resp.Request.URL.String()
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message, URL: reqURL}
}
