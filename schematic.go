package boreas

import "strings"

// Schematic is a named, independently composable bundle of routes, websocket
// routes, and middleware. Bundles are assembled without an App and mounted
// later with Include, letting features ship their routing as a unit:
//
//	users := boreas.NewSchematic("users")
//	users.Rule("/", listUsers)
//	users.Rule("/{id}", getUser, boreas.WithName("detail"))
//
//	app.Include("/users", users)
type Schematic struct {
	Name string

	rules      []schematicRule
	sockets    []schematicSocket
	middleware []schematicMiddleware
}

type schematicRule struct {
	path    string
	handler HandlerFunc
	opts    []RouteOption
}

type schematicSocket struct {
	path    string
	handler SocketHandlerFunc
}

type schematicMiddleware struct {
	fn   MiddlewareFunc
	opts []MiddlewareOption
}

// NewSchematic creates an empty bundle. The name qualifies the names of the
// bundle's routes when mounted, so "detail" in a schematic named "users"
// becomes addressable as "users.detail".
func NewSchematic(name string) *Schematic {
	return &Schematic{Name: name}
}

// Rule records an HTTP route in the bundle. Arguments mirror App.Rule; the
// path is relative to the mount prefix.
func (s *Schematic) Rule(path string, handler HandlerFunc, opts ...RouteOption) {
	s.rules = append(s.rules, schematicRule{path: path, handler: handler, opts: opts})
}

// WebSocket records a WebSocket route in the bundle.
func (s *Schematic) WebSocket(path string, handler SocketHandlerFunc) {
	s.sockets = append(s.sockets, schematicSocket{path: path, handler: handler})
}

// UseMiddleware records a middleware entry in the bundle. Mounted entries
// join the app's single pipeline and observe every request, not only those
// under the mount prefix; scope them with conditions if needed.
func (s *Schematic) UseMiddleware(fn MiddlewareFunc, opts ...MiddlewareOption) {
	s.middleware = append(s.middleware, schematicMiddleware{fn: fn, opts: opts})
}

// Include mounts a schematic under a URL prefix, registering its routes,
// websocket routes, and middleware on the app. The prefix must be empty or
// start with a slash; a trailing slash is trimmed so the bundle's own paths
// supply it. Route registration faults inside the bundle panic exactly as
// they would with direct registration, and mounting the same named bundle
// twice panics on its route names.
func (a *App) Include(prefix string, schematic *Schematic) {
	if schematic == nil {
		configPanic("nil schematic")
	}
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		configPanic("schematic prefix must start with a leading slash: " + prefix)
	}
	prefix = strings.TrimSuffix(prefix, "/")

	for _, rule := range schematic.rules {
		opts := rule.opts
		if name := routeName(rule.opts); name != "" && schematic.Name != "" {
			opts = append(append([]RouteOption{}, rule.opts...), WithName(schematic.Name+"."+name))
		}
		a.Rule(prefix+rule.path, rule.handler, opts...)
	}
	for _, socket := range schematic.sockets {
		a.WebSocket(prefix+socket.path, socket.handler)
	}
	for _, mw := range schematic.middleware {
		a.pipeline.Use(mw.fn, mw.opts...)
	}

	a.logger.Debug("mounted schematic",
		"name", schematic.Name,
		"prefix", prefix,
		"routes", len(schematic.rules),
		"websockets", len(schematic.sockets),
		"middleware", len(schematic.middleware))
}

func routeName(opts []RouteOption) string {
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.name
}
