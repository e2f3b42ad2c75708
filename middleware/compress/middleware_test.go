package compress

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/RobertWHurst/boreas"
)

func serve(t *testing.T, handler boreas.HandlerFunc, opts ...Option) *httptest.Server {
	t.Helper()

	app := boreas.New()
	app.Rule("/payload", handler)
	app.UseMiddleware(Middleware(opts...))

	server := httptest.NewServer(app)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url, acceptEncoding string) *http.Response {
	t.Helper()

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestMiddlewareCompressesEligibleBody(t *testing.T) {
	payload := strings.Repeat("boreas carries the north wind. ", 64)
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		return payload, nil
	})

	res := get(t, server.URL+"/payload", "gzip")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "gzip" {
		t.Fatalf("expected Content-Encoding gzip, got %q", encoding)
	}
	if vary := res.Header.Get("Vary"); vary != "Accept-Encoding" {
		t.Errorf("expected Vary: Accept-Encoding, got %q", vary)
	}

	reader, err := gzip.NewReader(res.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("decompressing body: %v", err)
	}
	if string(body) != payload {
		t.Errorf("decompressed body does not match the original payload")
	}
}

func TestMiddlewareSkipsSmallBody(t *testing.T) {
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		return "small", nil
	})

	res := get(t, server.URL+"/payload", "gzip")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "" {
		t.Errorf("expected identity encoding for a small body, got %q", encoding)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "small" {
		t.Errorf("expected body %q, got %q", "small", string(body))
	}
}

func TestMiddlewareSkipsClientsWithoutGzip(t *testing.T) {
	payload := strings.Repeat("plain text. ", 100)
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		return payload, nil
	})

	res := get(t, server.URL+"/payload", "identity")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "" {
		t.Errorf("expected identity encoding, got %q", encoding)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != payload {
		t.Errorf("body was altered although the client never offered gzip")
	}
}

func TestMiddlewareSkipsIneligibleContentType(t *testing.T) {
	payload := strings.Repeat("fake pixels ", 100)
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		return boreas.NewResponse(200, []byte(payload), "image/png"), nil
	})

	res := get(t, server.URL+"/payload", "gzip")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "" {
		t.Errorf("expected image bodies to pass through, got Content-Encoding %q", encoding)
	}
}

func TestMiddlewareHonorsExcludedPaths(t *testing.T) {
	payload := strings.Repeat("excluded. ", 100)
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		return payload, nil
	}, WithExcludePaths("/payload"))

	res := get(t, server.URL+"/payload", "gzip")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "" {
		t.Errorf("expected the excluded path to pass through, got Content-Encoding %q", encoding)
	}
}

func TestMiddlewareKeepsExistingEncoding(t *testing.T) {
	payload := strings.Repeat("already encoded. ", 100)
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		res := boreas.NewResponse(200, []byte(payload), "text/plain")
		res.Header.Set("Content-Encoding", "br")
		return res, nil
	})

	res := get(t, server.URL+"/payload", "gzip")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "br" {
		t.Errorf("expected the handler's encoding to survive, got %q", encoding)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != payload {
		t.Errorf("pre-encoded body was altered")
	}
}

func TestMiddlewareHonorsMinSize(t *testing.T) {
	payload := strings.Repeat("tiny threshold. ", 4)
	server := serve(t, func(ctx *boreas.Context) (any, error) {
		return payload, nil
	}, WithMinSize(8))

	res := get(t, server.URL+"/payload", "gzip")

	if encoding := res.Header.Get("Content-Encoding"); encoding != "gzip" {
		t.Errorf("expected a lowered threshold to compress, got %q", encoding)
	}
}
