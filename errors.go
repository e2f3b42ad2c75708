package boreas

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// ConfigError reports a registration-time configuration fault: a bad method,
// a bad path prefix, a duplicate route, an unusable option. Configuration
// faults are raised immediately as panics, are never caught by the request
// pipeline, and are meant to prevent startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

func configPanic(reason string) {
	panic(&ConfigError{Reason: reason})
}

// HTTPError is a typed HTTP failure that doubles as a response: returning
// one from a handler, hook, or middleware IS producing a response with its
// status. The translator hands it back as-is without re-translation.
type HTTPError struct {
	Status int
	Detail string
	Header http.Header
}

func (e *HTTPError) Error() string {
	text := http.StatusText(e.Status)
	if e.Detail == "" {
		return text
	}
	return text + ": " + e.Detail
}

// Response converts the error into its canonical response form. The body is
// the detail when present, the standard status text otherwise.
func (e *HTTPError) Response() *Response {
	body := e.Detail
	if body == "" {
		body = http.StatusText(e.Status)
	}
	res := NewResponse(e.Status, []byte(body), "text/plain; charset=utf-8")
	for key, values := range e.Header {
		for _, value := range values {
			res.Header.Add(key, value)
		}
	}
	return res
}

// NewHTTPError creates an HTTPError with the given status and detail. An
// empty detail falls back to the standard status text when rendered.
func NewHTTPError(status int, detail string) *HTTPError {
	return &HTTPError{Status: status, Detail: detail}
}

// BadRequest creates a 400 error.
func BadRequest(detail string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, detail)
}

// Unauthorized creates a 401 error.
func Unauthorized(detail string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, detail)
}

// Forbidden creates a 403 error.
func Forbidden(detail string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, detail)
}

// NotFound creates a 404 error.
func NotFound(detail string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, detail)
}

// MethodNotAllowed creates a 405 error carrying the allowed method set in
// both the detail and the Allow header.
func MethodNotAllowed(allowed []string) *HTTPError {
	sorted := make([]string, len(allowed))
	copy(sorted, allowed)
	sort.Strings(sorted)

	err := NewHTTPError(http.StatusMethodNotAllowed, "allowed methods: "+strings.Join(sorted, ", "))
	err.Header = http.Header{}
	err.Header.Set("Allow", strings.Join(sorted, ", "))
	return err
}

// TooManyRequests creates a 429 error.
func TooManyRequests(detail string) *HTTPError {
	return NewHTTPError(http.StatusTooManyRequests, detail)
}

// InternalServerError creates a 500 error.
func InternalServerError(detail string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, detail)
}

// BadGateway creates a 502 error.
func BadGateway(detail string) *HTTPError {
	return NewHTTPError(http.StatusBadGateway, detail)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(detail string) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, detail)
}

// GatewayTimeout creates a 504 error.
func GatewayTimeout(detail string) *HTTPError {
	return NewHTTPError(http.StatusGatewayTimeout, detail)
}

// ContractViolation reports a handler that broke its return contract: a
// result shape outside the accepted set, a response-model mismatch, or a
// websocket handler returning something other than its socket. Shown
// verbatim in debug mode, rendered as a generic 500 in production.
type ContractViolation struct {
	Message string
}

func (e *ContractViolation) Error() string {
	return "handler contract violation: " + e.Message
}

// ErrRejected signals that a websocket handler refused the connection. The
// router translates it into a protocol-error close at the boundary.
var ErrRejected = errors.New("connection rejected")
