package remote

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

var (
	// ErrUnauthorized matches APIError values with status 401
	ErrUnauthorized = errors.New("mail api: unauthorized")
	// ErrNotFound matches APIError values with status 404
	ErrNotFound = errors.New("mail api: not found")
)

// APIError is a non-2xx answer from the mail API
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("mail api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("mail api: %d %s", e.Status, e.Detail)
}

// Is lets errors.Is match the status sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// newAPIError extracts "detail" (FastAPI) or "error" from the body,
// falling back to the raw text.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return apiErr
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Detail = truncate(string(body), 200)
		return apiErr
	}

	switch {
	case len(payload.Detail) > 0:
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			apiErr.Detail = s
		} else {
			apiErr.Detail = truncate(string(payload.Detail), 200)
		}
	case payload.Error != "":
		apiErr.Detail = payload.Error
	}
	return apiErr
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
