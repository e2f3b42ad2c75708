package boreas

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

func isWebsocketUpgradeRequest(req *http.Request) bool {
	return req.Header.Get("Upgrade") == "websocket"
}

func scopeFromRequest(kind ConnectionKind, req *http.Request) *Scope {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return &Scope{
		Kind:       kind,
		Method:     req.Method,
		Path:       req.URL.Path,
		RawQuery:   req.URL.RawQuery,
		Proto:      req.Proto,
		Scheme:     scheme,
		Host:       req.Host,
		Header:     req.Header,
		RemoteAddr: req.RemoteAddr,
	}
}

func (a *App) serveRequest(res http.ResponseWriter, req *http.Request) {
	conn := &httpConnection{req: req, res: res}
	a.handleHTTP(req.Context(), scopeFromRequest(KindHTTP, req), conn)
}

func (a *App) serveWebsocket(res http.ResponseWriter, req *http.Request) {
	if !a.sockets.matchesPath(req.URL.Path) {
		// No socket route wants this path: refuse the upgrade with a
		// plain HTTP 404 instead of accepting and then closing.
		scope := scopeFromRequest(KindHTTP, req)
		requestCtx := newContext(req.Context(), scope, &httpConnection{req: req, res: res}, a)
		defer requestCtx.free()
		notFound := a.translate(requestCtx, NotFound(""))
		if err := notFound.send(requestCtx); err != nil {
			a.logger.Debug("response write failed", "path", scope.Path, "error", err)
		}
		return
	}

	origins := a.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	conn, err := websocket.Accept(res, req, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		a.logger.Debug("websocket upgrade failed", "path", req.URL.Path, "error", err)
		return
	}

	a.handleSocket(req.Context(), scopeFromRequest(KindWebSocket, req), &wsConnection{conn: conn})
}

// httpConnection adapts one net/http request/response exchange to the
// connection event sequence: inbound body chunks, then a response start and
// response body outbound.
type httpConnection struct {
	req *http.Request
	res http.ResponseWriter

	buf      []byte
	bodyDone bool
}

var _ Connection = &httpConnection{}

func (c *httpConnection) Receive(ctx context.Context) (*Event, error) {
	if c.bodyDone {
		select {
		case <-c.req.Context().Done():
			return &Event{Type: EventDisconnect}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.buf == nil {
		c.buf = make([]byte, 32*1024)
	}

	n, err := c.req.Body.Read(c.buf)
	if n > 0 {
		body := make([]byte, n)
		copy(body, c.buf[:n])
		if err != nil {
			c.bodyDone = true
			return &Event{Type: EventRequestBody, Body: body}, nil
		}
		return &Event{Type: EventRequestBody, Body: body, More: true}, nil
	}

	c.bodyDone = true
	if err != nil && !errors.Is(err, io.EOF) {
		return &Event{Type: EventDisconnect}, nil
	}
	return &Event{Type: EventRequestBody}, nil
}

func (c *httpConnection) Send(_ context.Context, event *Event) error {
	switch event.Type {
	case EventResponseStart:
		header := c.res.Header()
		for key, values := range event.Header {
			for _, value := range values {
				header.Add(key, value)
			}
		}
		c.res.WriteHeader(event.Status)
	case EventResponseBody:
		if len(event.Body) > 0 {
			if _, err := c.res.Write(event.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// wsConnection adapts an accepted coder/websocket connection to the
// connection event sequence. The upgrade handshake doubles as the accept,
// so the accept event is a no-op here.
type wsConnection struct {
	conn *websocket.Conn
}

var _ Connection = &wsConnection{}

func (c *wsConnection) Receive(ctx context.Context) (*Event, error) {
	msgType, data, err := c.conn.Read(ctx)
	if err != nil {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			return &Event{Type: EventSocketClose, Code: closeErr.Code, Reason: closeErr.Reason}, nil
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return &Event{Type: EventDisconnect}, nil
		}
		return nil, err
	}
	return &Event{Type: EventSocketMessage, Body: data, Binary: msgType == websocket.MessageBinary}, nil
}

func (c *wsConnection) Send(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventSocketAccept:
		return nil
	case EventSocketSend:
		msgType := websocket.MessageText
		if event.Binary {
			msgType = websocket.MessageBinary
		}
		return c.conn.Write(ctx, msgType, event.Body)
	case EventSocketClose:
		return c.conn.Close(event.Code, event.Reason)
	}
	return nil
}

// lifespanTrigger is the in-process lifespan connection used by Run: it
// feeds startup and shutdown events to the lifecycle controller and waits
// for the matching completion or failure acknowledgements.
type lifespanTrigger struct {
	events chan *Event
	acks   chan *Event
}

var _ Connection = &lifespanTrigger{}

func newLifespanTrigger() *lifespanTrigger {
	return &lifespanTrigger{
		events: make(chan *Event),
		acks:   make(chan *Event, 2),
	}
}

func (t *lifespanTrigger) Receive(ctx context.Context) (*Event, error) {
	select {
	case event := <-t.events:
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *lifespanTrigger) Send(ctx context.Context, event *Event) error {
	select {
	case t.acks <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *lifespanTrigger) startup(ctx context.Context) error {
	select {
	case t.events <- &Event{Type: EventLifespanStartup}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case ack := <-t.acks:
		if ack.Type == EventLifespanStartupFailed {
			return errors.New(ack.Message)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *lifespanTrigger) shutdown(ctx context.Context) error {
	select {
	case t.events <- &Event{Type: EventLifespanShutdown}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case ack := <-t.acks:
		if ack.Type == EventLifespanShutdownFailed {
			return errors.New(ack.Message)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
