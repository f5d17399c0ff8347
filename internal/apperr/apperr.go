// Package apperr defines the error taxonomy shared by the dispatcher, the
// orchestration loop and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies an error for retry policy and HTTP mapping.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindMissingArgument  Kind = "missing_argument"
	KindUpstreamTimeout  Kind = "upstream_timeout"
	KindUpstreamError    Kind = "upstream_error"
	KindValidation       Kind = "validation_error"
	KindNotFound         Kind = "not_found"
	KindUnauthenticated  Kind = "unauthenticated"
	KindInternal         Kind = "internal"
)

// Error carries a kind, a user-readable message and an optional cause.
// The cause is for logs only and never leaves the process.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err. Context deadlines and network timeouts are
// upstream timeouts; anything unclassified is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if IsTimeout(err) {
		return KindUpstreamTimeout
	}
	return KindInternal
}

// IsTimeout matches context deadlines and net.Error timeouts.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Retryable reports whether a failed read may be attempted once more.
func Retryable(err error) bool {
	return KindOf(err) == KindUpstreamTimeout
}

// HTTPStatus maps a kind to a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindMissingArgument:
		return http.StatusUnprocessableEntity
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamError:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns text that is safe to show to an end user.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return ae.Message
	}
	switch KindOf(err) {
	case KindUpstreamTimeout:
		return "The service took too long to respond. Please try again."
	default:
		return "Something went wrong while handling the request."
	}
}
