package boreas

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// ConnectionKind discriminates the three connection protocols an App can be
// handed by a transport: the host lifespan handshake, a single HTTP
// request/response exchange, or a WebSocket session.
type ConnectionKind int

const (
	KindLifespan ConnectionKind = iota
	KindHTTP
	KindWebSocket
)

func (k ConnectionKind) String() string {
	switch k {
	case KindLifespan:
		return "lifespan"
	case KindHTTP:
		return "http"
	case KindWebSocket:
		return "websocket"
	}
	return "unknown"
}

// Scope describes an inbound connection: its kind plus the request metadata
// shared by the http and websocket kinds. Lifespan scopes carry only the
// kind.
type Scope struct {
	Kind       ConnectionKind
	Method     string
	Path       string
	RawQuery   string
	Proto      string
	Scheme     string
	Host       string
	Header     http.Header
	RemoteAddr string
}

// UserAgent returns the User-Agent header, if any.
func (s *Scope) UserAgent() string {
	if s.Header == nil {
		return ""
	}
	return s.Header.Get("User-Agent")
}

// EventType names one event within a connection's fixed event sequence.
// Lifespan connections follow startup → startup.complete|startup.failed →
// shutdown → shutdown.complete|shutdown.failed. HTTP connections deliver
// request body chunks inbound and a response start followed by body chunks
// outbound. WebSocket connections deliver an accept outbound, then messages
// in both directions, then a close from either side.
type EventType string

const (
	EventLifespanStartup          EventType = "lifespan.startup"
	EventLifespanStartupComplete  EventType = "lifespan.startup.complete"
	EventLifespanStartupFailed    EventType = "lifespan.startup.failed"
	EventLifespanShutdown         EventType = "lifespan.shutdown"
	EventLifespanShutdownComplete EventType = "lifespan.shutdown.complete"
	EventLifespanShutdownFailed   EventType = "lifespan.shutdown.failed"

	EventRequestBody   EventType = "http.request"
	EventDisconnect    EventType = "http.disconnect"
	EventResponseStart EventType = "http.response.start"
	EventResponseBody  EventType = "http.response.body"

	EventSocketAccept  EventType = "websocket.accept"
	EventSocketMessage EventType = "websocket.message"
	EventSocketSend    EventType = "websocket.send"
	EventSocketClose   EventType = "websocket.close"
)

// Event is one element of a connection's event sequence. Which fields are
// meaningful depends on the type: body and More for request/response and
// socket messages, Status and Header for a response start, Code and Reason
// for socket closes, Message for lifespan failures.
type Event struct {
	Type    EventType
	Body    []byte
	More    bool
	Binary  bool
	Status  int
	Header  http.Header
	Code    websocket.StatusCode
	Reason  string
	Message string
}

// Connection is the transport half of a connection: the App pulls inbound
// events from Receive and pushes outbound events through Send. Receive
// blocks until an event arrives, the context is done, or the peer goes away.
// Implementations are driven by exactly one goroutine at a time.
type Connection interface {
	Receive(ctx context.Context) (*Event, error)
	Send(ctx context.Context, event *Event) error
}
