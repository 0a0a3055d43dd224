package fitbit

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a non-success response from the Fitbit API
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fitbit: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is an HTTP 401 from the Fitbit API
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is an HTTP 404 from the Fitbit API
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// IsTooManyRequests reports whether err is an HTTP 429 from the Fitbit API
func IsTooManyRequests(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}
