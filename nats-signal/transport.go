// Package natssignal carries boreas signals between app instances over
// NATS. Every instance connected to the same namespace sees every signal;
// the hub's source filtering prevents local echo.
package natssignal

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/RobertWHurst/boreas"
)

// Transport publishes and receives signals on a namespaced NATS subject.
type Transport struct {
	NatsConnection *nats.Conn

	subjectPrefix string
	unbindReceive func()
}

// New creates a transport over an established NATS connection. The
// namespace isolates unrelated apps sharing one NATS cluster; when empty,
// "boreas" is used.
func New(conn *nats.Conn, namespace string) *Transport {
	if namespace == "" {
		namespace = "boreas"
	}
	return &Transport{
		NatsConnection: conn,
		subjectPrefix:  namespace,
		unbindReceive:  func() {},
	}
}

var _ boreas.SignalTransport = &Transport{}

func (t *Transport) subject() string {
	return t.subjectPrefix + ".signals"
}

// Publish sends a locally emitted signal to every instance in the
// namespace.
func (t *Transport) Publish(signal *boreas.Signal) error {
	messageBytes, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	return t.NatsConnection.Publish(t.subject(), messageBytes)
}

// BindReceive subscribes to the namespace's signal subject. Messages that
// do not decode as signals are dropped.
func (t *Transport) BindReceive(handler func(signal *boreas.Signal)) error {
	sub, err := t.NatsConnection.Subscribe(t.subject(), func(msg *nats.Msg) {
		signal := &boreas.Signal{}
		if err := json.Unmarshal(msg.Data, signal); err != nil {
			return
		}
		handler(signal)
	})
	if err != nil {
		return err
	}

	t.unbindReceive = func() {
		_ = sub.Unsubscribe()
	}
	return nil
}

// UnbindReceive drops the subscription. Publishing remains possible.
func (t *Transport) UnbindReceive() {
	t.unbindReceive()
	t.unbindReceive = func() {}
}
