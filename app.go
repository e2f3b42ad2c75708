package boreas

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// App is a request dispatch engine: an ordered HTTP route table, a separate
// WebSocket route table, an ordered middleware pipeline, stage hook
// registries, and an exception translator, driven by a lifecycle controller
// that keys on connection kind. It implements http.Handler for integration
// with Go's standard HTTP servers, upgrading WebSocket requests itself.
//
// All registration happens on an explicit App instance before traffic is
// served; the tables are read-mostly once the app is running, and mutating
// them during live dispatch is unsupported.
type App struct {
	routes  *routeTable
	sockets *socketTable
	links   *linkTable

	pipeline *Pipeline
	hooks    *HookRegistry

	statusHandlers map[int]StatusHandlerFunc
	errorHandler   ErrorHandlerFunc

	startupHooks  []StartupFunc
	shutdownHooks []ShutdownFunc

	requestTransformers  []RequestTransformer
	responseTransformers []ResponseTransformer

	signals *SignalHub

	logger          *slog.Logger
	debug           bool
	origins         []string
	handlerTimeout  time.Duration
	shutdownTimeout time.Duration

	state atomic.Int32
}

var _ http.Handler = &App{}

// Option configures an App at construction time.
type Option func(*App)

// WithLogger sets the structured logger used for dispatch, hook, and
// lifecycle reporting. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithDebug toggles debug mode. In debug mode unmatched requests and
// translation failures render diagnostic pages carrying the live route
// table and request details, and failing stage hooks are logged and
// swallowed rather than aborting with a 500. Never enable in production.
func WithDebug(enabled bool) Option {
	return func(a *App) {
		a.debug = enabled
	}
}

// WithOrigins configures the allowed origin patterns for WebSocket
// connections, checked during the upgrade handshake. Patterns support
// wildcards, for example:
//   - "https://example.com" - exact match
//   - "https://*.example.com" - subdomain wildcard
//   - "*" - allow all origins (default)
func WithOrigins(origins ...string) Option {
	return func(a *App) {
		a.origins = origins
	}
}

// WithHandlerTimeout races every HTTP handler against the given deadline.
// A handler that does not complete in time yields a 504 while the handler
// goroutine is left to observe its context and wind down. Zero disables
// the deadline.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(a *App) {
		a.handlerTimeout = timeout
	}
}

// WithShutdownTimeout bounds the graceful drain performed by Run when the
// process is signalled. Defaults to 10 seconds.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(a *App) {
		a.shutdownTimeout = timeout
	}
}

// WithConfig applies a loaded configuration. It expands to the options
// Config.Options returns, so explicit options placed after it win.
func WithConfig(cfg *Config) Option {
	return func(a *App) {
		for _, opt := range cfg.Options() {
			opt(a)
		}
	}
}

// New creates an empty App. Routes, middleware, hooks, and handlers are
// registered on the returned instance.
func New(opts ...Option) *App {
	app := &App{
		routes:          newRouteTable(),
		sockets:         newSocketTable(),
		links:           newLinkTable(),
		hooks:           newHookRegistry(),
		pipeline:        newPipeline(),
		statusHandlers:  map[int]StatusHandlerFunc{},
		logger:          slog.Default(),
		shutdownTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(app)
	}

	app.signals = newSignalHub(app.logger)

	return app
}

// Logger returns the app's structured logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Debug reports whether the app is in debug mode.
func (a *App) Debug() bool {
	return a.debug
}

// Signals returns the app's signal hub for in-process and cross-process
// event fan-out.
func (a *App) Signals() *SignalHub {
	return a.signals
}

// Routes returns descriptors for every registered HTTP and WebSocket route
// in registration order. Useful for gateway integration and diagnostics.
func (a *App) Routes() []*RouteDescriptor {
	descriptors := make([]*RouteDescriptor, 0, len(a.routes.routes)+len(a.sockets.routes))
	for _, route := range a.routes.routes {
		descriptors = append(descriptors, route.Describe())
	}
	for _, route := range a.sockets.routes {
		descriptors = append(descriptors, route.Describe())
	}
	return descriptors
}

// HandleStatus registers a handler consulted whenever translation resolves
// an error to the given status code. The handler's result is normalized
// like any other and keeps the status unless it produces a full *Response.
// Registering the same status twice replaces the earlier handler.
func (a *App) HandleStatus(status int, handler StatusHandlerFunc) {
	if handler == nil {
		configPanic("nil status handler")
	}
	if status < 100 || status > 599 {
		configPanic("status handler code out of range")
	}
	a.statusHandlers[status] = handler
}

// HandleError registers the custom error handler consulted for errors that
// carry no status of their own, before the generic fallback pages.
func (a *App) HandleError(handler ErrorHandlerFunc) {
	if handler == nil {
		configPanic("nil error handler")
	}
	a.errorHandler = handler
}

// OnStartup registers a callback run during the lifespan startup phase, in
// registration order. A callback error or panic marks startup failed: the
// failure is signaled to the host, re-raised, and the app never serves.
func (a *App) OnStartup(fn StartupFunc) {
	if fn == nil {
		configPanic("nil startup callback")
	}
	a.startupHooks = append(a.startupHooks, fn)
}

// OnShutdown registers a callback run during the lifespan shutdown phase,
// in registration order.
func (a *App) OnShutdown(fn ShutdownFunc) {
	if fn == nil {
		configPanic("nil shutdown callback")
	}
	a.shutdownHooks = append(a.shutdownHooks, fn)
}

// ServeHTTP implements http.Handler. WebSocket upgrade requests are
// accepted and routed through the WebSocket table; everything else is
// dispatched as HTTP.
func (a *App) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if isWebsocketUpgradeRequest(req) {
		a.serveWebsocket(res, req)
		return
	}
	a.serveRequest(res, req)
}

// Run serves the app on the given address until ctx is canceled or the
// process receives an interrupt or termination signal, then drains in-flight
// requests and runs the shutdown phase. Startup callbacks run before the
// listener opens; a startup failure is returned without ever serving.
func (a *App) Run(ctx context.Context, addr string) error {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The lifespan connection outlives the signal context: its end is
	// governed by the shutdown handshake, not the interrupt.
	lifespanCtx, cancelLifespan := context.WithCancel(context.Background())
	defer cancelLifespan()

	trigger := newLifespanTrigger()
	lifespanDone := make(chan error, 1)
	go func() {
		lifespanDone <- a.HandleConnection(lifespanCtx, &Scope{Kind: KindLifespan}, trigger)
	}()

	if err := trigger.startup(runCtx); err != nil {
		cancelLifespan()
		if lifespanErr := <-lifespanDone; lifespanErr != nil {
			return lifespanErr
		}
		return err
	}

	server := &http.Server{Addr: addr, Handler: a}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	a.logger.Info("listening", "addr", addr)

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-runCtx.Done():
		a.logger.Info("shutting down", "addr", addr)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		a.logger.Warn("listener drain incomplete", "error", err)
	}

	if err := trigger.shutdown(drainCtx); err != nil {
		cancelLifespan()
		if lifespanErr := <-lifespanDone; lifespanErr != nil {
			return lifespanErr
		}
		return err
	}
	if err := <-lifespanDone; err != nil {
		return err
	}
	return runErr
}
