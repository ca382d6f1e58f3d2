package hosting

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError is a rejection reported by the provider, either through a non-2xx
// response or a body whose status is not "ok".
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Code       string
}

// Error is the provider's message, unmodified, so it can be shown to users.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("hosting API returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return "hosting API returned status " + e.Status
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return stderrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
