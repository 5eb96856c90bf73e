package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the backend answers 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport marks failures where no HTTP response was received.
	ErrTransport = errors.New("transport failure")
)

// HTTPError is any non-2xx response other than 401.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// StatusError maps a non-2xx status to the error a caller should see.
func StatusError(status int, body []byte) error {
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return &HTTPError{Status: status, Body: body}
}

// StatusOf returns the HTTP status carried by err, or 0 if there is none.
func StatusOf(err error) int {
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
