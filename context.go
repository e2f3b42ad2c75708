package boreas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Context carries one HTTP request through dispatch: the connection scope,
// the captured path parameters, and a mutable key/value bag shared by hooks,
// the handler, and middleware. A Context is owned exclusively by the task
// handling its request and is never shared across requests. Contexts are
// pooled and recycled between requests.
type Context struct {
	stdCtx context.Context
	scope  *Scope
	conn   Connection
	app    *App

	captures map[string]string
	params   PathParams
	route    *Route
	received time.Time

	query       url.Values
	queryParsed bool

	body         []byte
	bodyConsumed bool

	// retained marks a context leaked to a handler goroutine that outlived
	// its request deadline; such a context must not return to the pool.
	retained bool

	associatedValues map[string]any
}

var contextPool = sync.Pool{
	New: func() any {
		return &Context{
			captures:         map[string]string{},
			params:           PathParams{},
			associatedValues: map[string]any{},
		}
	},
}

func newContext(stdCtx context.Context, scope *Scope, conn Connection, app *App) *Context {
	ctx := contextFromPool()

	ctx.stdCtx = stdCtx
	ctx.scope = scope
	ctx.conn = conn
	ctx.app = app
	ctx.received = time.Now()

	return ctx
}

func contextFromPool() *Context {
	ctx := contextPool.Get().(*Context)

	ctx.stdCtx = nil
	ctx.scope = nil
	ctx.conn = nil
	ctx.app = nil

	for k := range ctx.captures {
		delete(ctx.captures, k)
	}
	for k := range ctx.params {
		delete(ctx.params, k)
	}
	ctx.route = nil

	ctx.query = nil
	ctx.queryParsed = false

	ctx.body = nil
	ctx.bodyConsumed = false
	ctx.retained = false

	for k := range ctx.associatedValues {
		delete(ctx.associatedValues, k)
	}

	return ctx
}

func (c *Context) free() {
	if c.retained {
		return
	}
	contextPool.Put(c)
}

// Context returns the request-scoped standard library context. It is
// cancelled when the client disconnects or a handler deadline expires.
func (c *Context) Context() context.Context {
	return c.stdCtx
}

// ReceivedAt returns the time the request entered dispatch.
func (c *Context) ReceivedAt() time.Time {
	return c.received
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.scope.Method
}

// Path returns the request path.
func (c *Context) Path() string {
	return c.scope.Path
}

// Header returns the request headers.
func (c *Context) Header() http.Header {
	return c.scope.Header
}

// Host returns the host the request was addressed to.
func (c *Context) Host() string {
	return c.scope.Host
}

// Scheme returns "https" for TLS requests and "http" otherwise.
func (c *Context) Scheme() string {
	return c.scope.Scheme
}

// RemoteAddr returns the network address of the client.
func (c *Context) RemoteAddr() string {
	return c.scope.RemoteAddr
}

// UserAgent returns the request's User-Agent header, if any.
func (c *Context) UserAgent() string {
	return c.scope.UserAgent()
}

// Query returns the parsed query string values. Parsing happens on first
// use; malformed pairs are dropped.
func (c *Context) Query() url.Values {
	if !c.queryParsed {
		c.query, _ = url.ParseQuery(c.scope.RawQuery)
		c.queryParsed = true
	}
	return c.query
}

// Params returns the path parameters captured by the matched route. Empty
// until a route has matched.
func (c *Context) Params() PathParams {
	return c.params
}

// Route returns the matched route, or nil before a match.
func (c *Context) Route() *Route {
	return c.route
}

// Set stores a value on the context for later retrieval with Get. The bag
// is shared by stage hooks, the handler, and middleware within one request.
func (c *Context) Set(key string, value any) {
	c.associatedValues[key] = value
}

// Get retrieves a value previously stored with Set, or nil.
func (c *Context) Get(key string) any {
	return c.associatedValues[key]
}

// Body reads and buffers the full request body. Subsequent calls return the
// same buffer. A client disconnect mid-stream is a terminal read: whatever
// arrived before the disconnect is returned and the stream is marked
// consumed.
func (c *Context) Body() ([]byte, error) {
	if c.bodyConsumed {
		return c.body, nil
	}

	for {
		event, err := c.conn.Receive(c.stdCtx)
		if err != nil {
			c.bodyConsumed = true
			return c.body, err
		}
		switch event.Type {
		case EventRequestBody:
			c.body = append(c.body, event.Body...)
			if !event.More {
				c.bodyConsumed = true
				return c.body, nil
			}
		case EventDisconnect:
			c.bodyConsumed = true
			return c.body, nil
		default:
			c.bodyConsumed = true
			return c.body, nil
		}
	}
}

// BindJSON reads the request body and unmarshals it into the given value.
func (c *Context) BindJSON(into any) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	return json.Unmarshal(body, into)
}

func (c *Context) setMatch(route *Route) {
	c.route = route

	if route.binding == nil {
		coerceCapturesInto(c.captures, &c.params)
		return
	}
	for k := range c.params {
		delete(c.params, k)
	}
	for key, raw := range c.captures {
		if !route.bindsParam(key) {
			c.app.logger.Debug("dropping path capture not named by route binding",
				"route", route.Pattern.String(), "param", key)
			continue
		}
		c.params[key] = coerceParamValue(raw)
	}
}
