package boreas

import "context"

// HandlerFunc handles one HTTP request. The returned value may be any of
// the accepted result shapes — string, map, list, a (body, status) pair
// built with WithStatus, or a *Response — and is normalized into a Response
// by the dispatcher. Returning an error routes the request to the exception
// translator; returning an *HTTPError produces that error's response.
type HandlerFunc func(ctx *Context) (any, error)

// SocketHandlerFunc handles one WebSocket session. The handler must return
// the very socket it was given; any other value is a contract violation.
type SocketHandlerFunc func(s *Socket) (any, error)

// MiddlewareFunc wraps a normalized response. It receives the request
// context and the response produced so far and returns the response to
// carry forward. Returning an error aborts the remaining pipeline and goes
// to the exception translator.
type MiddlewareFunc func(ctx *Context, res *Response) (*Response, error)

// HookFunc is a stage hook run before or after the handler. A non-nil
// result short-circuits its stage and is normalized into the effective
// response.
type HookFunc func(ctx *Context) (any, error)

// ConditionFunc gates a middleware entry or stage hook for one request.
type ConditionFunc func(ctx *Context) bool

// StatusHandlerFunc renders the response for a specific status code,
// overriding the default page. Its result passes through the same
// normalization as handler results.
type StatusHandlerFunc func(ctx *Context, err *HTTPError) (any, error)

// ErrorHandlerFunc is an application-wide custom error handler consulted for
// errors no status handler claims.
type ErrorHandlerFunc func(ctx *Context, err error) (any, error)

// StartupFunc runs during the lifespan startup phase. An error fails
// startup: the running phase is never entered.
type StartupFunc func(ctx context.Context) error

// ShutdownFunc runs during the lifespan shutdown phase.
type ShutdownFunc func(ctx context.Context) error
