package boreas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

// dispatch runs one HTTP request through the full pipeline and always
// produces a response: any error or panic escaping the pipeline is handed
// to the exception translator.
func (a *App) dispatch(ctx *Context) *Response {
	var res *Response
	err := execWithRecovery(func() error {
		var dispatchErr error
		res, dispatchErr = a.dispatchHTTP(ctx)
		return dispatchErr
	})
	if err != nil {
		return a.translate(ctx, err)
	}
	return res
}

// dispatchHTTP is the dispatch contract proper: scan the route table in
// registration order, negotiate the method, run before hooks, the handler,
// and normalization, then after hooks, the middleware pipeline, and the
// response transformers.
func (a *App) dispatchHTTP(ctx *Context) (*Response, error) {
	allowedSet := map[string]bool{}
	var allowed []string

	// First full match wins: a route whose pattern matches but whose
	// method set does not only contributes to the allowed accumulator,
	// and the scan keeps going.
	var matched *Route
	for _, route := range a.routes.routes {
		if !route.Pattern.MatchInto(ctx.scope.Path, &ctx.captures) {
			continue
		}
		if !route.Allows(ctx.scope.Method) {
			for _, method := range route.Methods {
				if !allowedSet[method] {
					allowedSet[method] = true
					allowed = append(allowed, method)
				}
			}
			continue
		}
		matched = route
		break
	}

	var res *Response
	if matched == nil {
		// Negotiation failures are still full responses: they cross the
		// after stage, the middleware pipeline, and the response
		// transformers the same way a handler result does.
		if len(allowed) > 0 {
			res = a.translate(ctx, MethodNotAllowed(allowed))
		} else {
			res = a.translate(ctx, NotFound(""))
		}
	} else {
		ctx.setMatch(matched)

		beforeResult, err := a.runStageHooks(ctx, StageBefore)
		if err != nil {
			return nil, err
		}

		if beforeResult != nil {
			// A before hook short-circuited: its result is the effective
			// response and the handler never runs.
			res, err = normalizeResult(beforeResult)
			if err != nil {
				return nil, err
			}
		} else {
			for _, transformer := range a.requestTransformers {
				if err := transformer.TransformRequest(ctx); err != nil {
					return nil, err
				}
			}

			result, err := a.invokeHandler(ctx, matched)
			if err != nil {
				return nil, err
			}

			if matched.responseModel != nil {
				res, err = serializeWithModel(result, matched.responseModel)
			} else {
				res, err = normalizeResult(result)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	afterResult, err := a.runStageHooks(ctx, StageAfter)
	if err != nil {
		return nil, err
	}
	if afterResult != nil {
		res, err = normalizeResult(afterResult)
		if err != nil {
			return nil, err
		}
	}

	res, err = a.pipeline.Apply(ctx, res)
	if err != nil {
		return nil, err
	}

	for _, transformer := range a.responseTransformers {
		next, err := transformer.TransformResponse(ctx, res)
		if err != nil {
			return nil, err
		}
		if next != nil {
			res = next
		}
	}

	return res, nil
}

// invokeHandler calls the matched route's handler, racing it against the
// configured handler deadline when one is set. On deadline the request
// yields a 504 while the handler goroutine is left to finish on its own;
// handlers doing slow work should capture ctx.Context() up front and watch
// it for cancellation.
func (a *App) invokeHandler(ctx *Context, route *Route) (any, error) {
	if a.handlerTimeout <= 0 {
		return a.callHandler(ctx, route)
	}

	parent := ctx.stdCtx
	timeoutCtx, cancel := context.WithTimeout(parent, a.handlerTimeout)
	defer cancel()
	ctx.stdCtx = timeoutCtx

	type handlerOutcome struct {
		result any
		err    error
	}
	done := make(chan handlerOutcome, 1)
	go func() {
		result, err := a.callHandler(ctx, route)
		done <- handlerOutcome{result: result, err: err}
	}()

	select {
	case outcome := <-done:
		ctx.stdCtx = parent
		return outcome.result, outcome.err
	case <-timeoutCtx.Done():
		// The handler goroutine still holds this context, so it must not
		// go back in the pool. The parent is restored so the 504 is sent
		// under a context the connection can still honor.
		ctx.retained = true
		ctx.stdCtx = parent
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			a.logger.Warn("handler deadline exceeded", "path", ctx.Path(), "timeout", a.handlerTimeout)
			return nil, GatewayTimeout("handler did not complete in time")
		}
		return nil, timeoutCtx.Err()
	}
}

func (a *App) callHandler(ctx *Context, route *Route) (result any, err error) {
	err = execWithRecovery(func() error {
		var handlerErr error
		result, handlerErr = route.Handler(ctx)
		return handlerErr
	})
	return result, err
}

// runStageHooks executes the effective hook sequence for a stage. The
// first hook whose condition passes and which returns a non-nil result
// short-circuits the stage. A failing hook is logged and swallowed in
// debug mode, and aborts the stage with a 500 in production.
func (a *App) runStageHooks(ctx *Context, stage Stage) (any, error) {
	for _, hook := range a.hooks.effective(stage) {
		if hook.condition != nil && !hook.condition(ctx) {
			continue
		}

		var result any
		err := execWithRecovery(func() error {
			var hookErr error
			result, hookErr = hook.fn(ctx)
			return hookErr
		})
		if err != nil {
			if a.debug {
				a.logger.Error("stage hook failed", "stage", string(stage), "hook", hook.name, "error", err)
				continue
			}
			return nil, InternalServerError("")
		}

		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// serializeWithModel enforces a route's declared response model: the raw
// handler result must be assignable to the model's type and is serialized
// as JSON.
func serializeWithModel(result any, model reflect.Type) (*Response, error) {
	if result == nil || !reflect.TypeOf(result).AssignableTo(model) {
		return nil, &ContractViolation{
			Message: fmt.Sprintf("handler result of type %T does not match the declared response model %s", result, model),
		}
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, &ContractViolation{Message: "response model value is not JSON-encodable: " + err.Error()}
	}
	return NewResponse(200, body, "application/json"), nil
}

// execWithRecovery runs fn, converting a panic into an error that carries
// the stack captured at the recovery site.
func execWithRecovery(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = newPanicError(recovered)
		}
	}()
	return fn()
}

// panicError wraps a recovered panic value. If the value was itself an
// error it stays reachable through Unwrap, so typed errors keep their
// meaning across a panic boundary.
type panicError struct {
	value any
	stack string
}

func newPanicError(value any) *panicError {
	return &panicError{value: value, stack: string(debug.Stack())}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.value)
}

func (e *panicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}

// panicStack extracts the stack captured when err was recovered from a
// panic, or an empty string for ordinary errors.
func panicStack(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return pe.stack
	}
	return ""
}
