package database

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for input and backend failures.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBackend      = errors.New("backend error")
)

// APIError is a structured error returned by the document backend. The
// backend's message is preserved verbatim so callers can propagate it.
type APIError struct {
	Status  int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error %d (%s): %s", e.Status, e.Type, e.Message)
}

// IsConflict reports whether err is a backend conflict, such as an identity
// or unique-indexed document that already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// IsUnauthorized reports whether err is a backend authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a backend not-found response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message extracts the backend's verbatim message from err, falling back to
// err.Error() when the error did not originate from the backend API.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
