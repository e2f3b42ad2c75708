package boreas

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Signal is one named application event: lifecycle transitions emitted by
// the app itself, or domain events emitted by handlers. The payload is
// opaque to the hub.
type Signal struct {
	Name    string    `json:"name"`
	Payload []byte    `json:"payload,omitempty"`
	Source  string    `json:"source"`
	Time    time.Time `json:"time"`
}

// SignalHandlerFunc receives one signal. Errors are logged by the hub and
// never propagate to the emitter.
type SignalHandlerFunc func(ctx context.Context, signal *Signal) error

// SignalTransport carries signals between app instances. Publish sends a
// locally emitted signal outward; BindReceive installs the handler invoked
// for signals arriving from other instances.
type SignalTransport interface {
	Publish(signal *Signal) error
	BindReceive(handler func(signal *Signal)) error
	UnbindReceive()
}

// SignalOption configures a signal receiver at registration time.
type SignalOption func(*signalReceiver)

// WithSignalPriority orders a receiver within its signal's delivery
// sequence. Higher priorities run first; ties keep registration order. The
// default priority is 0.
func WithSignalPriority(priority int) SignalOption {
	return func(r *signalReceiver) {
		r.priority = priority
	}
}

type signalReceiver struct {
	fn       SignalHandlerFunc
	priority int
	seq      int
}

// SignalHub fans named signals out to local receivers and, when a transport
// is connected, to other instances of the app. Each hub has a unique
// identity; signals that originated locally are not re-delivered when they
// echo back through the transport.
type SignalHub struct {
	mu        sync.Mutex
	id        string
	logger    *slog.Logger
	receivers map[string][]*signalReceiver
	nextSeq   int
	transport SignalTransport
}

func newSignalHub(logger *slog.Logger) *SignalHub {
	return &SignalHub{
		id:        uuid.NewString(),
		logger:    logger,
		receivers: map[string][]*signalReceiver{},
	}
}

// ID returns the hub's unique identity.
func (h *SignalHub) ID() string {
	return h.id
}

// On registers a receiver for the named signal.
func (h *SignalHub) On(name string, fn SignalHandlerFunc, opts ...SignalOption) {
	if fn == nil {
		configPanic("nil signal receiver for " + name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	receiver := &signalReceiver{fn: fn, seq: h.nextSeq}
	h.nextSeq++
	for _, opt := range opts {
		opt(receiver)
	}

	receivers := append(h.receivers[name], receiver)
	sort.SliceStable(receivers, func(i, j int) bool {
		if receivers[i].priority != receivers[j].priority {
			return receivers[i].priority > receivers[j].priority
		}
		return receivers[i].seq < receivers[j].seq
	})
	h.receivers[name] = receivers
}

// Emit delivers the named signal to local receivers in priority order, then
// publishes it through the connected transport, if any. Receiver errors are
// logged and never interrupt delivery.
func (h *SignalHub) Emit(ctx context.Context, name string, payload []byte) {
	signal := &Signal{
		Name:    name,
		Payload: payload,
		Source:  h.id,
		Time:    time.Now(),
	}

	h.deliver(ctx, signal)

	h.mu.Lock()
	transport := h.transport
	h.mu.Unlock()
	if transport != nil {
		if err := transport.Publish(signal); err != nil {
			h.logger.Error("signal publish failed", "signal", name, "error", err)
		}
	}
}

// Connect attaches a transport, detaching any previous one first. Signals
// already in flight on the old transport may be dropped during the swap.
func (h *SignalHub) Connect(transport SignalTransport) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport != nil {
		h.transport.UnbindReceive()
	}
	if err := transport.BindReceive(h.handleRemote); err != nil {
		return err
	}
	h.transport = transport
	return nil
}

// Disconnect detaches the current transport. Local delivery is unaffected.
func (h *SignalHub) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport != nil {
		h.transport.UnbindReceive()
		h.transport = nil
	}
}

func (h *SignalHub) handleRemote(signal *Signal) {
	if signal.Source == h.id {
		return
	}
	h.deliver(context.Background(), signal)
}

func (h *SignalHub) deliver(ctx context.Context, signal *Signal) {
	h.mu.Lock()
	receivers := make([]*signalReceiver, len(h.receivers[signal.Name]))
	copy(receivers, h.receivers[signal.Name])
	h.mu.Unlock()

	for _, receiver := range receivers {
		receiver := receiver
		err := execWithRecovery(func() error { return receiver.fn(ctx, signal) })
		if err != nil {
			h.logger.Error("signal receiver failed", "signal", signal.Name, "error", err)
		}
	}
}
