package session

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/vietddude/opsbridge/internal/infra/remote"
)

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	// ActionFatal surfaces the error unchanged.
	ActionFatal ErrorAction = iota
	// ActionRefresh evicts the session and runs the call once more.
	ActionRefresh
)

func (a ErrorAction) String() string {
	if a == ActionRefresh {
		return "refresh"
	}
	return "fatal"
}

var retryablePatterns = []string{
	"connection reset",
	"econnreset",
	"connection refused",
	"econnrefused",
	"broken pipe",
	"epipe",
	"timeout",
	"timed out",
	"etimedout",
	"socket hang up",
	"session expired",
	"token expired",
	"user not authenticated",
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil || errors.Is(err, context.Canceled) {
		return ActionFatal
	}

	// The instance answered: only a missing status or an expired
	// authorization means the session itself is bad.
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == 0 || statusErr.StatusCode == http.StatusUnauthorized {
			return ActionRefresh
		}
		return ActionFatal
	}

	// No response at all
	var transportErr *remote.TransportError
	if errors.As(err, &transportErr) {
		return ActionRefresh
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ActionRefresh
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ActionRefresh
	}

	// Errors from other client implementations only carry a message.
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return ActionRefresh
		}
	}

	return ActionFatal
}

// IsRetryable reports whether err warrants a fresh session and one retry.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRefresh
}
