package boreas

import (
	"context"
	"errors"
	"fmt"
)

// Lifecycle states. An app starts in stateCreated and only ever reaches
// stateFailed through a startup or shutdown hook failure; once failed, no
// http or websocket dispatch is attempted again in this process.
const (
	stateCreated int32 = iota
	stateStarting
	stateRunning
	stateStopping
	stateStopped
	stateFailed
)

// HandleConnection drives one connection's event sequence to completion.
// Transports construct a Scope and a Connection for each inbound connection
// and hand both here; the connection kind selects the lifespan handshake,
// the HTTP dispatcher, or the WebSocket router. Only lifespan connections
// report errors: startup and shutdown failures are re-raised to the hosting
// process after being signaled. HTTP and WebSocket handling never lets an
// error escape past the boundary.
func (a *App) HandleConnection(ctx context.Context, scope *Scope, conn Connection) error {
	switch scope.Kind {
	case KindLifespan:
		return a.handleLifespan(ctx, conn)
	case KindHTTP:
		a.handleHTTP(ctx, scope, conn)
		return nil
	case KindWebSocket:
		a.handleSocket(ctx, scope, conn)
		return nil
	}
	return fmt.Errorf("unsupported connection kind: %s", scope.Kind)
}

// handleLifespan runs the host handshake: wait for the startup trigger, run
// startup hooks, acknowledge, then wait for the shutdown trigger, run
// shutdown hooks, and acknowledge. A hook failure is signaled to the host
// before the error is returned.
func (a *App) handleLifespan(ctx context.Context, conn Connection) error {
	for {
		event, err := conn.Receive(ctx)
		if err != nil {
			return err
		}

		switch event.Type {
		case EventLifespanStartup:
			a.state.Store(stateStarting)
			if err := a.runStartupHooks(ctx); err != nil {
				a.state.Store(stateFailed)
				a.signals.Emit(ctx, string(EventLifespanStartupFailed), []byte(err.Error()))
				sendErr := conn.Send(ctx, &Event{Type: EventLifespanStartupFailed, Message: err.Error()})
				if sendErr != nil {
					a.logger.Error("failed to signal startup failure", "error", sendErr)
				}
				return fmt.Errorf("startup failed: %w", err)
			}
			a.state.Store(stateRunning)
			a.signals.Emit(ctx, string(EventLifespanStartupComplete), nil)
			if err := conn.Send(ctx, &Event{Type: EventLifespanStartupComplete}); err != nil {
				return err
			}

		case EventLifespanShutdown:
			a.state.Store(stateStopping)
			if err := a.runShutdownHooks(ctx); err != nil {
				a.state.Store(stateFailed)
				a.signals.Emit(ctx, string(EventLifespanShutdownFailed), []byte(err.Error()))
				sendErr := conn.Send(ctx, &Event{Type: EventLifespanShutdownFailed, Message: err.Error()})
				if sendErr != nil {
					a.logger.Error("failed to signal shutdown failure", "error", sendErr)
				}
				return fmt.Errorf("shutdown failed: %w", err)
			}
			a.state.Store(stateStopped)
			a.signals.Emit(ctx, string(EventLifespanShutdownComplete), nil)
			if err := conn.Send(ctx, &Event{Type: EventLifespanShutdownComplete}); err != nil {
				return err
			}
			return nil

		case EventDisconnect:
			return nil
		}
	}
}

func (a *App) runStartupHooks(ctx context.Context) error {
	for i, hook := range a.startupHooks {
		hook := hook
		err := execWithRecovery(func() error { return hook(ctx) })
		if err != nil {
			a.logger.Error("startup hook failed", "index", i, "error", err)
			return err
		}
	}
	return nil
}

func (a *App) runShutdownHooks(ctx context.Context) error {
	for i, hook := range a.shutdownHooks {
		hook := hook
		err := execWithRecovery(func() error { return hook(ctx) })
		if err != nil {
			a.logger.Error("shutdown hook failed", "index", i, "error", err)
			return err
		}
	}
	return nil
}

// handleHTTP runs one request through the dispatcher. Anything escaping the
// dispatch boundary, translator included, becomes a generic 500.
func (a *App) handleHTTP(stdCtx context.Context, scope *Scope, conn Connection) {
	if a.state.Load() == stateFailed {
		res := ServiceUnavailable("server failed to start").Response()
		requestCtx := newContext(stdCtx, scope, conn, a)
		defer requestCtx.free()
		if err := res.send(requestCtx); err != nil {
			a.logger.Debug("response write failed", "path", scope.Path, "error", err)
		}
		return
	}

	requestCtx := newContext(stdCtx, scope, conn, a)
	defer requestCtx.free()

	var res *Response
	err := execWithRecovery(func() error {
		res = a.dispatch(requestCtx)
		return nil
	})
	if err != nil || res == nil {
		a.logger.Error("request escaped the dispatch boundary", "method", scope.Method, "path", scope.Path, "error", err)
		res = InternalServerError("").Response()
	}

	if err := res.send(requestCtx); err != nil {
		a.logger.Debug("response write failed", "path", scope.Path, "error", err)
	}
}

// handleSocket matches the socket table by path alone, dispatches the first
// match, and enforces the handler contract: the handler must return the
// socket it was given. Errors at the boundary become a best-effort close
// handshake instead of propagating.
func (a *App) handleSocket(stdCtx context.Context, scope *Scope, conn Connection) {
	socket := newSocket(stdCtx, scope, conn, a)

	if a.state.Load() == stateFailed {
		socket.closeBestEffort(StatusInternalError, "server failed to start")
		return
	}

	var matched *SocketRoute
	captures := map[string]string{}
	for _, route := range a.sockets.routes {
		if route.Pattern.MatchInto(scope.Path, &captures) {
			matched = route
			break
		}
	}
	if matched == nil {
		socket.closeBestEffort(StatusPolicyViolation, "connection rejected")
		return
	}
	socket.setMatch(matched, captures)

	var result any
	err := execWithRecovery(func() error {
		var handlerErr error
		result, handlerErr = matched.Handler(socket)
		return handlerErr
	})
	if err != nil {
		a.closeForError(socket, err)
		return
	}

	returned, ok := result.(*Socket)
	if !ok || returned != socket {
		violation := &ContractViolation{
			Message: fmt.Sprintf("websocket handler must return its socket; got %T", result),
		}
		a.logger.Error("websocket contract violation", "path", scope.Path, "error", violation)
		socket.closeBestEffort(StatusInternalError, "unexpected condition")
		return
	}

	socket.closeBestEffort(StatusNormalClosure, "")
}

// closeForError translates a handler error into a close code: a close
// observed from the peer is echoed, a rejection closes as a protocol
// error, and everything else closes as an internal error.
func (a *App) closeForError(socket *Socket, err error) {
	var closeErr *SocketCloseError
	switch {
	case errors.As(err, &closeErr):
		socket.closeBestEffort(closeErr.Code, closeErr.Reason)
	case errors.Is(err, ErrRejected):
		socket.closeBestEffort(StatusProtocolError, "connection rejected")
	default:
		a.logger.Error("websocket handler failed", "path", socket.Path(), "error", err)
		socket.closeBestEffort(StatusInternalError, "unexpected condition")
	}
}
