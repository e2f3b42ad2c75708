package boreas

import (
	"reflect"
	"sort"
	"strings"
)

// httpMethods is the set of methods a route may declare.
var httpMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"HEAD":    true,
	"OPTIONS": true,
	"PATCH":   true,
	"TRACE":   true,
}

// Route is one HTTP route registration: a compiled pattern, the allowed
// method set, the handler, and optional metadata. Routes are created through
// App.Rule and are immutable afterward.
type Route struct {
	Pattern *Pattern
	Methods []string
	Handler HandlerFunc
	Name    string

	binding       []string
	responseModel reflect.Type
	handlerID     uintptr
}

// Allows reports whether the route accepts the given method.
func (r *Route) Allows(method string) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

func (r *Route) bindsParam(name string) bool {
	for _, p := range r.binding {
		if p == name {
			return true
		}
	}
	return false
}

// Describe returns the route's descriptor for introspection.
func (r *Route) Describe() *RouteDescriptor {
	return &RouteDescriptor{
		Path:    r.Pattern.String(),
		Methods: r.Methods,
		Name:    r.Name,
	}
}

// SocketRoute is one WebSocket route registration. Socket routes have no
// method concept and live in a table separate from HTTP routes.
type SocketRoute struct {
	Pattern *Pattern
	Handler SocketHandlerFunc
	Name    string

	handlerID uintptr
}

// Describe returns the socket route's descriptor for introspection.
func (r *SocketRoute) Describe() *RouteDescriptor {
	return &RouteDescriptor{
		Path:      r.Pattern.String(),
		Name:      r.Name,
		WebSocket: true,
	}
}

// normalizeMethods validates and canonicalizes a route's method set. An
// empty set defaults to GET.
func normalizeMethods(methods []string) ([]string, error) {
	if len(methods) == 0 {
		return []string{"GET"}, nil
	}

	seen := map[string]bool{}
	normalized := make([]string, 0, len(methods))
	for _, method := range methods {
		canonical := strings.ToUpper(strings.TrimSpace(method))
		if !httpMethods[canonical] {
			return nil, &ConfigError{Reason: "unsupported HTTP method: " + method}
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		normalized = append(normalized, canonical)
	}
	sort.Strings(normalized)

	return normalized, nil
}

type routeKey struct {
	source    string
	handlerID uintptr
}

// routeTable is the ordered registry HTTP dispatch scans. Registration
// order is significant: the first full match wins, so more specific routes
// must be registered before more general ones.
type routeTable struct {
	routes []*Route
	seen   map[routeKey]bool
}

func newRouteTable() *routeTable {
	return &routeTable{seen: map[routeKey]bool{}}
}

func (t *routeTable) add(route *Route) error {
	key := routeKey{source: route.Pattern.Source(), handlerID: route.handlerID}
	if t.seen[key] {
		return &ConfigError{Reason: "duplicate route registration: " + route.Pattern.String()}
	}
	t.seen[key] = true
	t.routes = append(t.routes, route)
	return nil
}

// socketTable is the ordered registry of WebSocket routes, matched purely
// by path.
type socketTable struct {
	routes []*SocketRoute
	seen   map[routeKey]bool
}

func newSocketTable() *socketTable {
	return &socketTable{seen: map[routeKey]bool{}}
}

func (t *socketTable) add(route *SocketRoute) error {
	key := routeKey{source: route.Pattern.Source(), handlerID: route.handlerID}
	if t.seen[key] {
		return &ConfigError{Reason: "duplicate websocket route registration: " + route.Pattern.String()}
	}
	t.seen[key] = true
	t.routes = append(t.routes, route)
	return nil
}

// matchesPath reports whether any socket route wants the path. Used to
// refuse upgrades before the handshake is accepted.
func (t *socketTable) matchesPath(path string) bool {
	for _, route := range t.routes {
		if _, ok := route.Pattern.Match(path); ok {
			return true
		}
	}
	return false
}

// handlerIdentity returns a comparable identity for a handler function,
// used for duplicate detection and reverse lookup.
func handlerIdentity(handler any) uintptr {
	return reflect.ValueOf(handler).Pointer()
}
