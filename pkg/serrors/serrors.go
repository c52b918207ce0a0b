// Package serrors defines the semantic error kinds shared by the provider
// clients and the reconciliation engine. Callers branch on kinds with
// errors.Is instead of inspecting HTTP status codes directly.
package serrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a marker interface implemented by all semantic error kinds created
// with NewKind. It allows distinguishing semantic kinds from ordinary errors.
type Kind interface {
	error
	isKind()
}

// kind is an unexported implementation of Kind used as a sentinel value for a
// semantic error category.
type kind struct{ s string }

func (k kind) Error() string { return k.s }
func (k kind) isKind()       {}

// NewKind creates a new semantic error kind (a sentinel) with the provided
// name. Kinds are comparable and can be used with errors.Is/As through the
// serrors.Error wrapper.
func NewKind(name string) Kind { return kind{s: name} }

var (
	// ErrNotFound indicates the requested remote resource does not exist.
	ErrNotFound = NewKind("NOT_FOUND")
	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = NewKind("UNAUTHORIZED")
	// ErrForbidden indicates the credentials lack a permission required by the call.
	ErrForbidden = NewKind("FORBIDDEN")
	// ErrBadRequest indicates invalid input, either local configuration or a payload the provider refused.
	ErrBadRequest = NewKind("BAD_REQUEST")
	// ErrRejected indicates the provider answered with a success status but reported
	// application-level errors in the response body. The item is not retried.
	ErrRejected = NewKind("REJECTED")
	// ErrRateLimited indicates the provider is throttling the caller and the same
	// request may succeed after a cool-down.
	ErrRateLimited = NewKind("RATE_LIMITED")
	// ErrUnavailable indicates the provider or a list source failed in a way that is not retried.
	ErrUnavailable = NewKind("UNAVAILABLE")
	// ErrInternal indicates a local failure such as an undecodable response.
	ErrInternal = NewKind("INTERNAL")
)

// Error represents a semantic error carrying a kind (sentinel), an optional
// wrapped error and an optional arbitrary message. It fully supports
// errors.Is/errors.As and unwrapping.
//
// Matching semantics:
//   - errors.Is(err, target) will match if target matches either the kind
//     sentinel or the wrapped error.
//   - errors.As(err, target) will succeed for either the kind sentinel or the
//     wrapped error.
type Error struct {
	kind Kind  // semantic kind sentinel
	err  error // wrapped error (optional)
	msg  string
}

// With constructs a new semantic error with the given kind and an arbitrary
// human-readable message. Use Wrap if you also want to wrap a concrete cause.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap constructs a new semantic error with the given kind, wraps the provided
// cause (err) and allows adding an arbitrary message.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// KindOnly creates a semantic error carrying only the kind without extra
// message or concrete cause.
func KindOnly(k Kind) *Error { return &Error{kind: k} }

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		if e.kind != nil {
			return e.kind.Error()
		}

		return "unknown error"
	}
}

// Unwrap returns the wrapped error, enabling errors.Unwrap/Is/As to traverse
// the underlying cause chain.
func (e *Error) Unwrap() error { return e.err }

// Is matches against either the semantic kind sentinel or the wrapped error.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}
	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}
	if e.err != nil && errors.Is(e.err, target) {
		return true
	}

	return false
}

// As enables type assertions against either the semantic kind sentinel or the
// wrapped error in the chain.
func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}
	if e.kind != nil && errors.As(e.kind, target) {
		return true
	}
	if e.err != nil && errors.As(e.err, target) {
		return true
	}

	return false
}

// Kind returns the semantic kind sentinel associated with this error, or nil.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind of the first *Error in err's chain, or nil when
// err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}

	return nil
}

// StatusError is a non-2xx answer from a provider API. Body holds the raw
// (trimmed) response body for reporting.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err does not
// wrap a *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}

	return 0
}

// statusGatewayTimeoutCloudflare is the non-standard "a timeout occurred"
// code returned by Cloudflare fronted APIs.
const statusGatewayTimeoutCloudflare = 524

// FromStatus classifies a non-2xx provider response. 401 and 403 map to the
// terminal auth kinds, 429/504/524 to ErrRateLimited, 404 to ErrNotFound and
// anything else is returned as a bare *StatusError.
func FromStatus(code int, body string) error {
	cause := &StatusError{Code: code, Body: body}

	switch code {
	case http.StatusUnauthorized:
		return Wrap(ErrUnauthorized, cause, "invalid credentials")
	case http.StatusForbidden:
		return Wrap(ErrForbidden, cause, "credentials lack required permissions")
	case http.StatusTooManyRequests, http.StatusGatewayTimeout, statusGatewayTimeoutCloudflare:
		return Wrap(ErrRateLimited, cause, "rate limited")
	case http.StatusNotFound:
		return Wrap(ErrNotFound, cause, "not found")
	default:
		return cause
	}
}

// IsAuth reports whether err is an authorization failure. Auth failures abort
// the whole run.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
