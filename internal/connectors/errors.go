// Package connectors holds the REST clients for the store platforms and Prokip.
package connectors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxResponseSize caps how much of a platform response is read (10MB).
const MaxResponseSize = 10 * 1024 * 1024

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// APIError is returned for non-2xx platform responses.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API request failed: %d - %s", e.Platform, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from a platform API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401/403 from a platform API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// CheckResponse turns a non-2xx response into an *APIError.
func CheckResponse(platform string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Platform: platform, StatusCode: resp.StatusCode, Body: string(body)}
}
