package boreas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
)

// SocketCloseError reports that the session ended before or during a read
// or send. Code carries the close code observed or synthesized at the
// transport boundary.
type SocketCloseError struct {
	Code   Status
	Reason string
}

func (e *SocketCloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket closed (%d)", e.Code)
	}
	return fmt.Sprintf("websocket closed (%d): %s", e.Code, e.Reason)
}

// Socket is one accepted WebSocket session. A handler receives the socket
// after its route matches, exchanges messages with Read and Send, and must
// return the same socket when it is done; close negotiation is handled at
// the boundary.
type Socket struct {
	id     string
	stdCtx context.Context
	scope  *Scope
	conn   Connection
	app    *App

	params PathParams
	route  *SocketRoute

	query       url.Values
	queryParsed bool

	mx          sync.Mutex
	accepted    bool
	closed      bool
	closeCode   Status
	closeReason string

	associatedValues map[string]any
}

func newSocket(stdCtx context.Context, scope *Scope, conn Connection, app *App) *Socket {
	return &Socket{
		id:               uuid.NewString(),
		stdCtx:           stdCtx,
		scope:            scope,
		conn:             conn,
		app:              app,
		params:           PathParams{},
		associatedValues: map[string]any{},
	}
}

func (s *Socket) setMatch(route *SocketRoute, captures map[string]string) {
	s.route = route
	coerceCapturesInto(captures, &s.params)
}

// ID returns the session's unique identifier.
func (s *Socket) ID() string {
	return s.id
}

// Context returns the session-scoped standard library context. It is
// cancelled when the client goes away.
func (s *Socket) Context() context.Context {
	return s.stdCtx
}

// Path returns the request path the session was opened against.
func (s *Socket) Path() string {
	return s.scope.Path
}

// Header returns the opening handshake request headers.
func (s *Socket) Header() map[string][]string {
	return s.scope.Header
}

// RemoteAddr returns the network address of the client.
func (s *Socket) RemoteAddr() string {
	return s.scope.RemoteAddr
}

// Query returns the parsed query string values from the opening handshake.
func (s *Socket) Query() url.Values {
	if !s.queryParsed {
		s.query, _ = url.ParseQuery(s.scope.RawQuery)
		s.queryParsed = true
	}
	return s.query
}

// Params returns the path parameters captured by the matched socket route.
func (s *Socket) Params() PathParams {
	return s.params
}

// Route returns the matched socket route.
func (s *Socket) Route() *SocketRoute {
	return s.route
}

// Set stores a value on the session for later retrieval with Get.
func (s *Socket) Set(key string, value any) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.associatedValues[key] = value
}

// Get retrieves a value previously stored with Set, or nil.
func (s *Socket) Get(key string) any {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.associatedValues[key]
}

// Accept completes the opening handshake. Read and Send accept implicitly,
// so calling Accept is only needed to acknowledge the session before the
// first message.
func (s *Socket) Accept() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.acceptLocked()
}

func (s *Socket) acceptLocked() error {
	if s.closed {
		return &SocketCloseError{Code: s.closeCode, Reason: s.closeReason}
	}
	if s.accepted {
		return nil
	}
	if err := s.conn.Send(s.stdCtx, &Event{Type: EventSocketAccept}); err != nil {
		return err
	}
	s.accepted = true
	return nil
}

// Read blocks until the next message arrives and returns its payload. A
// close from the peer or a transport disconnect ends the session and is
// reported as a *SocketCloseError.
func (s *Socket) Read() ([]byte, error) {
	if err := s.Accept(); err != nil {
		return nil, err
	}

	for {
		event, err := s.conn.Receive(s.stdCtx)
		if err != nil {
			s.markClosed(StatusAbnormalClosure, "")
			return nil, err
		}
		switch event.Type {
		case EventSocketMessage:
			return event.Body, nil
		case EventSocketClose:
			s.markClosed(event.Code, event.Reason)
			return nil, &SocketCloseError{Code: event.Code, Reason: event.Reason}
		case EventDisconnect:
			s.markClosed(StatusAbnormalClosure, "")
			return nil, &SocketCloseError{Code: StatusAbnormalClosure}
		}
	}
}

// ReadJSON reads the next message and unmarshals it into the given value.
func (s *Socket) ReadJSON(into any) error {
	data, err := s.Read()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, into)
}

// ReadProto reads the next message and unmarshals it as a Protocol Buffers
// message. Define standard .proto schemas and use the generated types
// directly; the wire payload is the plain proto encoding, no envelope.
func (s *Socket) ReadProto(into proto.Message) error {
	data, err := s.Read()
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, into)
}

// Send writes a binary message to the peer.
func (s *Socket) Send(data []byte) error {
	return s.send(data, true)
}

// SendText writes a text message to the peer.
func (s *Socket) SendText(text string) error {
	return s.send([]byte(text), false)
}

// SendJSON marshals the given value and writes it as a text message.
func (s *Socket) SendJSON(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.send(data, false)
}

// SendProto marshals a Protocol Buffers message and writes it as a binary
// message.
func (s *Socket) SendProto(value proto.Message) error {
	data, err := proto.Marshal(value)
	if err != nil {
		return err
	}
	return s.send(data, true)
}

func (s *Socket) send(data []byte, binary bool) error {
	if err := s.Accept(); err != nil {
		return err
	}
	return s.conn.Send(s.stdCtx, &Event{Type: EventSocketSend, Body: data, Binary: binary})
}

// Close starts the closing handshake with the given code and reason.
// Closing an already-closed session is a no-op.
func (s *Socket) Close(code Status, reason string) error {
	s.mx.Lock()
	if s.closed {
		s.mx.Unlock()
		return nil
	}
	s.closed = true
	s.closeCode = code
	s.closeReason = reason
	s.mx.Unlock()

	return s.conn.Send(s.stdCtx, &Event{Type: EventSocketClose, Code: code, Reason: reason})
}

// Closed reports whether the session has ended, by either side.
func (s *Socket) Closed() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.closed
}

func (s *Socket) markClosed(code Status, reason string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.closeCode = code
	s.closeReason = reason
}

// closeBestEffort is the boundary's close path: it never reports transport
// errors because the peer may already be gone.
func (s *Socket) closeBestEffort(code Status, reason string) {
	if err := s.Close(code, reason); err != nil {
		s.app.logger.Debug("websocket close failed", "socket", s.id, "error", err)
	}
}
