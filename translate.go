package boreas

import (
	"errors"
	"net/http"
)

// translate maps an error escaping the request pipeline to the response the
// client sees. Resolution order: a typed HTTP error produces its own
// response (through a registered status handler when one exists, and with
// rich 404/405 pages in debug mode); a contract violation is shown verbatim
// in debug and as a generic 500 in production; anything else goes to the
// custom error handler, then the debug diagnostic page, then the generic
// 500. translate never fails: every path ends in a response.
func (a *App) translate(ctx *Context, err error) *Response {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if handler, ok := a.statusHandlers[httpErr.Status]; ok {
			if res := a.runStatusHandler(ctx, handler, httpErr); res != nil {
				return res
			}
		}
		if a.debug {
			switch httpErr.Status {
			case http.StatusNotFound:
				return debugPage404(ctx, a.Routes())
			case http.StatusMethodNotAllowed:
				return debugPage405(ctx, httpErr.Header.Get("Allow"))
			}
		}
		return httpErr.Response()
	}

	var violation *ContractViolation
	if errors.As(err, &violation) {
		a.logger.Error("handler contract violation", "path", ctx.Path(), "error", violation.Message)
		if a.debug {
			return debugPageError(ctx, violation, panicStack(err))
		}
		return InternalServerError("").Response()
	}

	if a.errorHandler != nil {
		if res := a.runErrorHandler(ctx, err); res != nil {
			return res
		}
	}

	if a.debug {
		return debugPageError(ctx, err, panicStack(err))
	}
	return InternalServerError("").Response()
}

// runStatusHandler invokes a registered status-code handler and normalizes
// its result. The error's status is imposed on any result that is not
// already a full Response. A failing or empty-handed handler falls back to
// the default page.
func (a *App) runStatusHandler(ctx *Context, handler StatusHandlerFunc, httpErr *HTTPError) *Response {
	var result any
	err := execWithRecovery(func() error {
		var handlerErr error
		result, handlerErr = handler(ctx, httpErr)
		return handlerErr
	})
	if err != nil {
		a.logger.Error("status handler failed", "status", httpErr.Status, "error", err)
		return nil
	}
	if result == nil {
		return nil
	}

	res, normErr := normalizeResult(result)
	if normErr != nil {
		a.logger.Error("status handler returned an invalid result", "status", httpErr.Status, "error", normErr)
		return nil
	}
	if _, isResponse := result.(*Response); !isResponse {
		res.Status = httpErr.Status
	}
	return res
}

// runErrorHandler invokes the application-wide custom error handler.
// Results that are not full Responses are forced to status 500.
func (a *App) runErrorHandler(ctx *Context, cause error) *Response {
	var result any
	err := execWithRecovery(func() error {
		var handlerErr error
		result, handlerErr = a.errorHandler(ctx, cause)
		return handlerErr
	})
	if err != nil {
		a.logger.Error("custom error handler failed", "error", err)
		return nil
	}
	if result == nil {
		return nil
	}

	res, normErr := normalizeResult(result)
	if normErr != nil {
		a.logger.Error("custom error handler returned an invalid result", "error", normErr)
		return nil
	}
	if _, isResponse := result.(*Response); !isResponse {
		res.Status = http.StatusInternalServerError
	}
	return res
}
