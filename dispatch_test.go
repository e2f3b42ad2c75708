package boreas_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RobertWHurst/boreas"
)

// discardLogger keeps expected warnings and errors out of the test output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppBeforeHooksRunInOrder(t *testing.T) {
	app := boreas.New()

	var ran []string
	var mx sync.Mutex
	note := func(tag string) {
		mx.Lock()
		defer mx.Unlock()
		ran = append(ran, tag)
	}

	app.Before(func(ctx *boreas.Context) (any, error) {
		note("second")
		return nil, nil
	}, boreas.WithHookOrder(20))
	app.Before(func(ctx *boreas.Context) (any, error) {
		note("first")
		return nil, nil
	}, boreas.WithHookOrder(10))
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		note("handler")
		return "ok", nil
	})
	server := serveApp(t, app)

	doRequest(t, "GET", server.URL+"/resource", nil)

	mx.Lock()
	defer mx.Unlock()
	if len(ran) != 3 || ran[0] != "first" || ran[1] != "second" || ran[2] != "handler" {
		t.Errorf("expected ordered hooks then the handler, got %v", ran)
	}
}

func TestAppBeforeHookShortCircuits(t *testing.T) {
	app := boreas.New()

	handlerRan := false
	app.Before(func(ctx *boreas.Context) (any, error) {
		return boreas.WithStatus("intercepted", 403), nil
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		handlerRan = true
		return "ok", nil
	})
	server := serveApp(t, app)

	res, body := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 403 {
		t.Errorf("expected status 403, got %d", res.StatusCode)
	}
	if body != "intercepted" {
		t.Errorf("unexpected body %q", body)
	}
	if handlerRan {
		t.Error("expected the handler to be skipped")
	}
}

func TestAppBeforeHookConditionSkips(t *testing.T) {
	app := boreas.New()

	app.Before(func(ctx *boreas.Context) (any, error) {
		return boreas.WithStatus("blocked", 403), nil
	}, boreas.WithHookCondition(func(ctx *boreas.Context) bool {
		return strings.HasPrefix(ctx.Path(), "/admin")
	}))
	app.Rule("/public", func(ctx *boreas.Context) (any, error) {
		return "open", nil
	})
	app.Rule("/admin/panel", func(ctx *boreas.Context) (any, error) {
		return "secret", nil
	})
	server := serveApp(t, app)

	_, body := doRequest(t, "GET", server.URL+"/public", nil)
	if body != "open" {
		t.Errorf("expected the public route to pass, got %q", body)
	}

	res, _ := doRequest(t, "GET", server.URL+"/admin/panel", nil)
	if res.StatusCode != 403 {
		t.Errorf("expected the admin route to be blocked, got %d", res.StatusCode)
	}
}

func TestAppAfterHookReplacesResponse(t *testing.T) {
	app := boreas.New()

	app.After(func(ctx *boreas.Context) (any, error) {
		return boreas.WithStatus("replaced", 202), nil
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "original", nil
	})
	server := serveApp(t, app)

	res, body := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 202 {
		t.Errorf("expected status 202, got %d", res.StatusCode)
	}
	if body != "replaced" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestAppHookErrorProductionAborts(t *testing.T) {
	app := boreas.New(boreas.WithLogger(discardLogger()))

	app.Before(func(ctx *boreas.Context) (any, error) {
		return nil, boreas.Unauthorized("nope")
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	server := serveApp(t, app)

	// Outside debug mode a failing hook aborts the stage with a generic 500,
	// regardless of what the hook's own error carried.
	res, _ := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", res.StatusCode)
	}
}

func TestAppHookErrorDebugContinues(t *testing.T) {
	app := boreas.New(boreas.WithDebug(true), boreas.WithLogger(discardLogger()))

	app.Before(func(ctx *boreas.Context) (any, error) {
		return nil, boreas.Unauthorized("nope")
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	server := serveApp(t, app)

	// Debug mode logs the failing hook and keeps going.
	res, body := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if body != "ok" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestAppMiddlewareObservesHandlerResponse(t *testing.T) {
	app := boreas.New()

	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		res.Header.Set("X-Middleware", "1")
		return res, nil
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	server := serveApp(t, app)

	res, _ := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.Header.Get("X-Middleware") != "1" {
		t.Error("expected the middleware to decorate the response")
	}
}

func TestAppNegotiationFailuresCrossPipeline(t *testing.T) {
	app := boreas.New()

	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		res.Header.Set("X-Middleware", "1")
		return res, nil
	})
	app.After(func(ctx *boreas.Context) (any, error) {
		return nil, nil
	})
	app.Rule("/known", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	}, boreas.WithMethods("POST"))
	server := serveApp(t, app)

	// A 404 is a translated response, not an abort: it still runs the after
	// stage and the middleware pipeline.
	res, _ := doRequest(t, "GET", server.URL+"/missing", nil)
	if res.StatusCode != 404 {
		t.Fatalf("expected status 404, got %d", res.StatusCode)
	}
	if res.Header.Get("X-Middleware") != "1" {
		t.Error("expected the middleware to see the 404")
	}

	// Same for a 405.
	res, _ = doRequest(t, "GET", server.URL+"/known", nil)
	if res.StatusCode != 405 {
		t.Fatalf("expected status 405, got %d", res.StatusCode)
	}
	if res.Header.Get("X-Middleware") != "1" {
		t.Error("expected the middleware to see the 405")
	}
}

func TestAppHandlerErrorsBypassPipeline(t *testing.T) {
	app := boreas.New()

	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		res.Header.Set("X-Middleware", "1")
		return res, nil
	})
	app.Rule("/broken", func(ctx *boreas.Context) (any, error) {
		return nil, boreas.BadRequest("bad")
	})
	server := serveApp(t, app)

	// An error raised by the handler aborts the chain; the translator's
	// response is sent without passing the remaining stages.
	res, _ := doRequest(t, "GET", server.URL+"/broken", nil)
	if res.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", res.StatusCode)
	}
	if res.Header.Get("X-Middleware") != "" {
		t.Error("expected the middleware to be bypassed for handler errors")
	}
}

func TestAppMiddlewareErrorGoesToTranslator(t *testing.T) {
	app := boreas.New()

	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		return nil, boreas.ServiceUnavailable("draining")
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	server := serveApp(t, app)

	res, body := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", res.StatusCode)
	}
	if body != "draining" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestAppHandlerPanicIsContained(t *testing.T) {
	app := boreas.New(boreas.WithLogger(discardLogger()))

	app.Rule("/explode", func(ctx *boreas.Context) (any, error) {
		panic("kaboom")
	})
	app.Rule("/fine", func(ctx *boreas.Context) (any, error) {
		return "still serving", nil
	})
	server := serveApp(t, app)

	res, body := doRequest(t, "GET", server.URL+"/explode", nil)
	if res.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", res.StatusCode)
	}
	if strings.Contains(body, "kaboom") {
		t.Errorf("expected the panic detail to be hidden in production, got %q", body)
	}

	// The process keeps serving other requests.
	_, body = doRequest(t, "GET", server.URL+"/fine", nil)
	if body != "still serving" {
		t.Errorf("expected the app to survive the panic, got %q", body)
	}
}

func TestAppPanicWithHTTPErrorKeepsMeaning(t *testing.T) {
	app := boreas.New()

	app.Rule("/gone", func(ctx *boreas.Context) (any, error) {
		panic(boreas.NotFound("vanished"))
	})
	server := serveApp(t, app)

	// A typed error thrown across the panic boundary stays reachable and is
	// translated by status rather than falling into the generic 500 path.
	res, body := doRequest(t, "GET", server.URL+"/gone", nil)
	if res.StatusCode != 404 {
		t.Errorf("expected status 404, got %d", res.StatusCode)
	}
	if body != "vanished" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestAppHandlerTimeout(t *testing.T) {
	app := boreas.New(
		boreas.WithHandlerTimeout(50*time.Millisecond),
		boreas.WithLogger(discardLogger()),
	)

	release := make(chan struct{})
	app.Rule("/slow", func(ctx *boreas.Context) (any, error) {
		select {
		case <-ctx.Context().Done():
		case <-release:
		}
		return "done", nil
	})
	app.Rule("/fast", func(ctx *boreas.Context) (any, error) {
		return "quick", nil
	})
	server := serveApp(t, app)
	t.Cleanup(func() { close(release) })

	res, body := doRequest(t, "GET", server.URL+"/slow", nil)
	if res.StatusCode != 504 {
		t.Errorf("expected status 504, got %d", res.StatusCode)
	}
	if !strings.Contains(body, "handler did not complete in time") {
		t.Errorf("unexpected body %q", body)
	}

	// Handlers inside the deadline are unaffected.
	res, body = doRequest(t, "GET", server.URL+"/fast", nil)
	if res.StatusCode != 200 || body != "quick" {
		t.Errorf("expected the fast route to pass, got %d %q", res.StatusCode, body)
	}
}

// strictConnection refuses sends once its context is done, the way a
// conforming transport would.
type strictConnection struct {
	sent []*boreas.Event
}

func (c *strictConnection) Receive(ctx context.Context) (*boreas.Event, error) {
	return &boreas.Event{Type: boreas.EventDisconnect}, nil
}

func (c *strictConnection) Send(ctx context.Context, event *boreas.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sent = append(c.sent, event)
	return nil
}

func TestAppHandlerTimeoutResponseSentOnLiveContext(t *testing.T) {
	app := boreas.New(
		boreas.WithHandlerTimeout(20*time.Millisecond),
		boreas.WithLogger(discardLogger()),
	)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	app.Rule("/slow", func(ctx *boreas.Context) (any, error) {
		<-release
		return "done", nil
	})

	conn := &strictConnection{}
	scope := &boreas.Scope{Kind: boreas.KindHTTP, Method: "GET", Path: "/slow", Header: http.Header{}}
	if err := app.HandleConnection(context.Background(), scope, conn); err != nil {
		t.Fatalf("handle connection failed: %v", err)
	}

	// The deadline expired, but the 504 must still go out on the parent
	// context, which is live.
	if len(conn.sent) == 0 {
		t.Fatal("expected the timeout response to reach the connection")
	}
	if conn.sent[0].Type != boreas.EventResponseStart || conn.sent[0].Status != 504 {
		t.Errorf("expected a 504 response start, got %s with status %d", conn.sent[0].Type, conn.sent[0].Status)
	}
}

func TestAppHandlerWithinTimeout(t *testing.T) {
	app := boreas.New(boreas.WithHandlerTimeout(time.Second))

	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		// The request context must still be live after the handler returns
		// inside its deadline.
		if err := ctx.Context().Err(); err != nil {
			return nil, err
		}
		return res, nil
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	server := serveApp(t, app)

	res, body := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 200 || body != "ok" {
		t.Errorf("expected a live context after the handler, got %d %q", res.StatusCode, body)
	}
}

type headerStampTransformer struct{}

func (headerStampTransformer) TransformRequest(ctx *boreas.Context) error {
	ctx.Set("stamp", "transformed:"+ctx.Header().Get("X-Inbound"))
	return nil
}

func (headerStampTransformer) TransformResponse(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
	res.Header.Set("X-Outbound", "1")
	return res, nil
}

func TestAppTransformers(t *testing.T) {
	app := boreas.New()

	app.Transform(headerStampTransformer{})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		stamp, _ := ctx.Get("stamp").(string)
		return stamp, nil
	})
	server := serveApp(t, app)

	req, err := http.NewRequest("GET", server.URL+"/resource", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Inbound", "present")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	if string(body) != "transformed:present" {
		t.Errorf("expected the request transformer to run before the handler, got %q", body)
	}
	if res.Header.Get("X-Outbound") != "1" {
		t.Error("expected the response transformer to decorate the response")
	}
}

func TestAppTransformerErrorAborts(t *testing.T) {
	app := boreas.New()

	app.Transform(rejectingTransformer{})
	handlerRan := false
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		handlerRan = true
		return "ok", nil
	})
	server := serveApp(t, app)

	res, _ := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.StatusCode != 415 {
		t.Errorf("expected status 415, got %d", res.StatusCode)
	}
	if handlerRan {
		t.Error("expected the handler to be skipped")
	}
}

type rejectingTransformer struct{}

func (rejectingTransformer) TransformRequest(ctx *boreas.Context) error {
	return boreas.NewHTTPError(http.StatusUnsupportedMediaType, "no thanks")
}

func TestAppTransformRejectsUnrelatedValue(t *testing.T) {
	app := boreas.New()

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a value with no transformer methods")
		}
	}()
	app.Transform(struct{}{})
}

func TestAppContextValues(t *testing.T) {
	app := boreas.New()

	app.Before(func(ctx *boreas.Context) (any, error) {
		ctx.Set("who", "hook")
		return nil, nil
	})
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		who, _ := ctx.Get("who").(string)
		return who, nil
	})
	server := serveApp(t, app)

	_, body := doRequest(t, "GET", server.URL+"/resource", nil)
	if body != "hook" {
		t.Errorf("expected the hook's value to reach the handler, got %q", body)
	}
}

func TestAppMiddlewareGroupToggleEndToEnd(t *testing.T) {
	app := boreas.New()

	app.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		res.Header.Set("X-Extra", "1")
		return res, nil
	}, boreas.WithGroup("extras"))
	app.Rule("/resource", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	server := serveApp(t, app)

	res, _ := doRequest(t, "GET", server.URL+"/resource", nil)
	if res.Header.Get("X-Extra") != "1" {
		t.Error("expected the grouped middleware to run while the group is active")
	}

	app.SetMiddlewareGroupActive("extras", false)
	res, _ = doRequest(t, "GET", server.URL+"/resource", nil)
	if res.Header.Get("X-Extra") != "" {
		t.Error("expected the grouped middleware to be skipped after deactivation")
	}
}
