package boreas

import (
	"fmt"
	"reflect"
	"strconv"
)

// RouteOption configures an HTTP route at registration time.
type RouteOption func(*routeConfig)

type routeConfig struct {
	methods       []string
	name          string
	strictSlashes bool
	binding       []string
	responseModel any
}

// WithMethods sets the HTTP methods the route accepts. Methods are
// case-insensitive and deduplicated; an empty set defaults to GET.
func WithMethods(methods ...string) RouteOption {
	return func(cfg *routeConfig) {
		cfg.methods = methods
	}
}

// WithName names the route, making it addressable by URLFor for reverse URL
// generation. Names must be unique across routes and links.
func WithName(name string) RouteOption {
	return func(cfg *routeConfig) {
		cfg.name = name
	}
}

// WithStrictSlashes makes placeholder captures stop at a trailing slash
// boundary: "/users/{id}" stops matching "/users/42/". Without it each
// placeholder tolerates one trailing slash, which stays in the captured
// value.
func WithStrictSlashes() RouteOption {
	return func(cfg *routeConfig) {
		cfg.strictSlashes = true
	}
}

// WithParams declares which placeholder captures the route's handler reads
// through Params. Captures outside the declared set are dropped before the
// handler runs. Without WithParams every capture is kept.
func WithParams(names ...string) RouteOption {
	return func(cfg *routeConfig) {
		cfg.binding = names
	}
}

// WithResponseModel declares the type the route's handler must return. The
// raw result is checked against the prototype's type and serialized as
// JSON; anything else is a contract violation.
//
//	app.Rule("/users/{id}", getUser, boreas.WithResponseModel(User{}))
func WithResponseModel(prototype any) RouteOption {
	return func(cfg *routeConfig) {
		cfg.responseModel = prototype
	}
}

// Rule registers an HTTP route. The path template names its placeholders in
// braces, and the handler returns one of the accepted result shapes: a
// string, a map, a list, a WithStatus pair, or a *Response.
//
//	app.Rule("/users/{id}", getUser)
//	app.Rule("/users", createUser, boreas.WithMethods("POST"))
//
// Registration order is dispatch order: the first registered route whose
// pattern and method both match wins, so register more specific routes
// before more general ones. Panics on configuration faults: an invalid
// template, an unsupported method, or re-registering the same (pattern,
// handler) pair.
func (a *App) Rule(path string, handler HandlerFunc, opts ...RouteOption) *Route {
	if handler == nil {
		configPanic("nil handler for route " + path)
	}

	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	pattern, err := NewPattern(path, cfg.strictSlashes)
	if err != nil {
		configPanic("invalid route pattern " + strconv.Quote(path) + ": " + err.Error())
	}

	methods, err := normalizeMethods(cfg.methods)
	if err != nil {
		configPanic(err.(*ConfigError).Reason)
	}

	route := &Route{
		Pattern:   pattern,
		Methods:   methods,
		Handler:   handler,
		Name:      cfg.name,
		binding:   cfg.binding,
		handlerID: handlerIdentity(handler),
	}
	if cfg.responseModel != nil {
		route.responseModel = reflect.TypeOf(cfg.responseModel)
	}

	if err := a.routes.add(route); err != nil {
		configPanic(err.(*ConfigError).Reason)
	}

	if cfg.name != "" {
		link := &Link{Name: cfg.name, Pattern: pattern, handlerID: route.handlerID}
		if err := a.links.add(link); err != nil {
			configPanic(err.(*ConfigError).Reason)
		}
	}

	return route
}

// WebSocket registers a WebSocket route. Socket routes live in their own
// table, are matched purely by path, and have no method concept. The
// handler exchanges messages on the socket and must return the same socket
// when the session is done:
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
// Panics on an invalid template or a duplicate (pattern, handler) pair.
func (a *App) WebSocket(path string, handler SocketHandlerFunc) *SocketRoute {
	if handler == nil {
		configPanic("nil handler for websocket route " + path)
	}

	pattern, err := NewPattern(path, false)
	if err != nil {
		configPanic("invalid websocket route pattern " + strconv.Quote(path) + ": " + err.Error())
	}

	route := &SocketRoute{
		Pattern:   pattern,
		Handler:   handler,
		handlerID: handlerIdentity(handler),
	}
	if err := a.sockets.add(route); err != nil {
		configPanic(err.(*ConfigError).Reason)
	}

	return route
}

// Link registers a named path template for reverse URL generation without
// any dispatch behavior. Use it to build URLs for paths served elsewhere.
// An optional handler binds the template to that function for Lookup, so
// handler-based reverse routing works for paths the app does not dispatch.
//
//	app.Link("avatar", "/static/avatars/{user}.png")
//	url, _ := app.URLFor("avatar", boreas.Params{"user": "25"})
func (a *App) Link(name, path string, handler ...HandlerFunc) *Link {
	if name == "" {
		configPanic("link requires a name")
	}
	if len(handler) > 1 {
		configPanic("link takes at most one handler")
	}

	pattern, err := NewPattern(path, false)
	if err != nil {
		configPanic("invalid link pattern " + strconv.Quote(path) + ": " + err.Error())
	}

	link := &Link{Name: name, Pattern: pattern}
	if len(handler) == 1 {
		if handler[0] == nil {
			configPanic("link handler must not be nil")
		}
		link.handlerID = handlerIdentity(handler[0])
	}
	if err := a.links.add(link); err != nil {
		configPanic(err.(*ConfigError).Reason)
	}

	return link
}

// Params is the parameter set consumed by URLFor. Values are rendered with
// their natural string form.
type Params map[string]any

// URLFor builds the URL for a named route or link, substituting the given
// parameters into its template. Every placeholder in the template must be
// supplied.
func (a *App) URLFor(name string, params Params) (string, error) {
	link, ok := a.links.byName(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", errLinkNotFound, name)
	}

	rendered := make(map[string]string, len(params))
	for key, value := range params {
		rendered[key] = fmt.Sprint(value)
	}
	return link.Pattern.PathFor(rendered)
}

// Lookup finds the pattern registered for a handler function. This is
// useful for generating paths from handlers (reverse routing). Checks HTTP
// routes, then WebSocket routes, then links.
//
//	if pattern, ok := app.Lookup(getUser); ok {
//	    path, _ := pattern.PathFor(map[string]string{"id": "25"})
//	}
func (a *App) Lookup(handler any) (*Pattern, bool) {
	if handler == nil {
		return nil, false
	}
	targetID := handlerIdentity(handler)

	for _, route := range a.routes.routes {
		if route.handlerID == targetID {
			return route.Pattern, true
		}
	}
	for _, route := range a.sockets.routes {
		if route.handlerID == targetID {
			return route.Pattern, true
		}
	}
	if link, ok := a.links.byHandler(targetID); ok {
		return link.Pattern, true
	}
	return nil, false
}

// UseMiddleware appends an entry to the middleware pipeline. Entries run in
// ascending order (ties keep registration order) after the handler's result
// has been normalized, each receiving the request context and the current
// response:
//
//	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
//	    res.Header.Set("X-Frame-Options", "DENY")
//	    return res, nil
//	}, boreas.WithOrder(10))
//
// The returned entry can be deactivated or renamed before serving begins.
func (a *App) UseMiddleware(fn MiddlewareFunc, opts ...MiddlewareOption) *MiddlewareEntry {
	return a.pipeline.Use(fn, opts...)
}

// SetMiddlewareGroupActive activates or deactivates every middleware entry
// registered under the given group. Groups start active.
func (a *App) SetMiddlewareGroupActive(group string, active bool) {
	a.pipeline.SetGroupActive(group, active)
}

// Before registers a hook run after a route matches and before its handler.
// The first before hook whose condition passes and which returns a non-nil
// result short-circuits dispatch: the result is normalized and the handler
// never runs.
func (a *App) Before(fn HookFunc, opts ...HookOption) *HookEntry {
	return a.hooks.Add(StageBefore, fn, opts...)
}

// After registers a hook run after the handler's result has been
// normalized, before the middleware pipeline. The first after hook whose
// condition passes and which returns a non-nil result replaces the response.
func (a *App) After(fn HookFunc, opts ...HookOption) *HookEntry {
	return a.hooks.Add(StageAfter, fn, opts...)
}

// HookGroup returns a registration handle for the named hook group. Grouped
// hooks join the same effective sequence as directly registered ones; the
// group is the unit hook inheritance copies from.
func (a *App) HookGroup(name string) *HookGroup {
	if name == "" {
		configPanic("hook group requires a name")
	}
	return &HookGroup{registry: a.hooks, name: name}
}

// InheritHooks copies the hooks the source group holds for a stage into the
// target group. The copy happens once, now: hooks added to the source group
// later are not visible to the target.
func (a *App) InheritHooks(stage Stage, target, source string) {
	a.hooks.Inherit(stage, target, source)
}

// ExcludeHook removes the named hook from a stage's effective sequence,
// whether it was registered directly or through a group.
func (a *App) ExcludeHook(stage Stage, hookName string) {
	a.hooks.Exclude(stage, hookName)
}

// Transform registers a transformer. The value must implement
// RequestTransformer, ResponseTransformer, or both; request transformers
// run after a route matches and before its handler, response transformers
// run after the middleware pipeline.
func (a *App) Transform(transformer any) {
	if transformer == nil {
		configPanic("nil transformer")
	}

	registered := false
	if rt, ok := transformer.(RequestTransformer); ok {
		a.requestTransformers = append(a.requestTransformers, rt)
		registered = true
	}
	if rt, ok := transformer.(ResponseTransformer); ok {
		a.responseTransformers = append(a.responseTransformers, rt)
		registered = true
	}
	if !registered {
		configPanic(fmt.Sprintf("transformer %T implements neither TransformRequest nor TransformResponse", transformer))
	}
}

