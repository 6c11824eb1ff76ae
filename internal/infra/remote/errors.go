package remote

import (
	"fmt"
	"net/http"
)

// StatusError is returned when the instance answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Detail     string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: no status: %s", e.Method, e.Path, msg)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// TransportError is returned when no response was received at all.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
