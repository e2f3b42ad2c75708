package requestlog

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/RobertWHurst/boreas"
)

// syncBuffer guards the log sink: lines are written from server goroutines
// while the test reads them back.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func serve(t *testing.T, logger *slog.Logger, opts ...Option) *httptest.Server {
	t.Helper()

	app := boreas.New()
	app.Rule("/users/{id}", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	app.Rule("/health", func(ctx *boreas.Context) (any, error) {
		return "up", nil
	})
	app.UseMiddleware(Middleware(append(opts, WithLogger(logger))...))

	server := httptest.NewServer(app)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
}

func TestMiddlewareLogsRequestLine(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	server := serve(t, logger)

	get(t, server.URL+"/users/25")

	line := buf.String()
	for _, want := range []string{"msg=request", "method=GET", "path=/users/25", "status=200", "duration="} {
		if !strings.Contains(line, want) {
			t.Errorf("expected log line to contain %q, got %q", want, line)
		}
	}
}

func TestMiddlewareLogsNegotiationFailures(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	server := serve(t, logger)

	get(t, server.URL+"/missing")

	line := buf.String()
	if !strings.Contains(line, "status=404") {
		t.Errorf("expected the 404 to be logged, got %q", line)
	}
}

func TestMiddlewareSkipsConfiguredPaths(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	server := serve(t, logger, WithSkipPaths("/health"))

	get(t, server.URL+"/health")
	get(t, server.URL+"/users/3")

	logged := buf.String()
	if strings.Contains(logged, "path=/health") {
		t.Errorf("expected /health to be skipped, got %q", logged)
	}
	if !strings.Contains(logged, "path=/users/3") {
		t.Errorf("expected /users/3 to be logged, got %q", logged)
	}
}

func TestMiddlewareHonorsLevel(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	server := serve(t, logger, WithLevel(slog.LevelDebug))

	get(t, server.URL+"/users/7")

	if buf.Len() != 0 {
		t.Errorf("expected debug lines to be dropped by an info handler, got %q", buf.String())
	}
}
