// Package boreas provides an HTTP and WebSocket request dispatch engine for Go.
//
// Boreas routes requests through an ordered route table with first-match-wins
// semantics, normalizes flexible handler results into canonical responses,
// and surrounds dispatch with stage hooks, a filterable middleware pipeline,
// and an exception translator that turns every failure into a response.
//
// # Key Features
//
//   - Ordered path-template routing with method negotiation and typed params
//   - Handlers return plain values: strings, maps, lists, or full responses
//   - Before/after stage hooks with ordering, groups, and inheritance
//   - Response middleware pipeline with conditions, groups, and exclusions
//   - WebSocket routing over the same app with per-session handlers
//   - Startup/shutdown lifecycle with a host handshake
//   - Works with any HTTP server via the http.Handler interface
//
// # Quick Start
//
// Create an app, register routes, and serve:
//
//	app := boreas.New()
//
//	app.Rule("/users/{id}", func(ctx *boreas.Context) (any, error) {
//	    return map[string]any{"id": ctx.Params().Get("id")}, nil
//	})
//
//	http.ListenAndServe(":8080", app)
//
// Or let the app own the listener and lifecycle:
//
//	app.Run(context.Background(), ":8080")
//
// # Routing
//
// Path templates name their placeholders in braces. Captured values are
// coerced: digit runs become int64, decimal forms become float64, and
// everything else stays a string:
//
//	app.Rule("/users", listUsers)                                  // GET by default
//	app.Rule("/users", createUser, boreas.WithMethods("POST"))
//	app.Rule("/users/{id}", getUser)                               // named parameter
//	app.Rule("/files/{name}", getFile, boreas.WithStrictSlashes())
//
// Registration order is dispatch order: the first route whose pattern and
// method both match wins. A path match with the wrong method contributes to
// the 405 Allow set while the scan continues.
//
// # Handler Results
//
// Handlers return (any, error). Strings become text, html, or xml responses
// by content sniffing; maps become JSON; lists of strings become JSON
// arrays; WithStatus pairs set an explicit status; *Response passes through
// untouched. Anything else is a contract violation reported as a 500.
//
// # Middleware and Hooks
//
// Middleware observes the normalized response after the handler. Hooks run
// around the handler itself: a before hook returning a non-nil result
// short-circuits dispatch, and an after hook's result replaces the response:
//
//	app.Before(func(ctx *boreas.Context) (any, error) {
//	    if ctx.Header()["Authorization"] == nil {
//	        return nil, boreas.Unauthorized("credentials required")
//	    }
//	    return nil, nil
//	})
//
//	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
//	    res.Header.Set("X-Frame-Options", "DENY")
//	    return res, nil
//	}, boreas.WithOrder(10))
//
// # Errors
//
// Returning a typed HTTP error from a handler is producing a response:
//
//	return nil, boreas.NotFound("no such user")
//
// Other errors resolve through the registered status and error handlers,
// then debug diagnostic pages when debug mode is on, then a generic 500.
//
// # WebSockets
//
// Socket routes live in their own table and upgrade in place. A session
// handler owns the socket until it returns it:
//
//	app.WebSocket("/chat/{room}", func(s *boreas.Socket) (any, error) {
//	    for {
//	        msg, err := s.Read()
//	        if err != nil {
//	            return s, nil
//	        }
//	        if err := s.Send(msg); err != nil {
//	            return s, err
//	        }
//	    }
//	})
//
// For more examples and documentation, see https://github.com/RobertWHurst/boreas
package boreas
