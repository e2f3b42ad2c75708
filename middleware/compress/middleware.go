// Package compress gzip-encodes response bodies for clients that accept it.
package compress

import (
	"bytes"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/RobertWHurst/boreas"
)

// Config controls response compression.
type Config struct {
	// Level is the gzip compression level.
	Level int

	// MinSize is the smallest body worth compressing, in bytes.
	MinSize int

	// ContentTypes are the content type prefixes eligible for compression.
	ContentTypes []string

	// ExcludePaths are request paths never compressed.
	ExcludePaths []string
}

// Option configures the compression middleware.
type Option func(*Config)

// WithLevel sets the gzip compression level.
func WithLevel(level int) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithMinSize sets the smallest body worth compressing.
func WithMinSize(size int) Option {
	return func(c *Config) {
		c.MinSize = size
	}
}

// WithContentTypes sets the content type prefixes eligible for compression.
func WithContentTypes(types ...string) Option {
	return func(c *Config) {
		c.ContentTypes = types
	}
}

// WithExcludePaths sets request paths never compressed.
func WithExcludePaths(paths ...string) Option {
	return func(c *Config) {
		c.ExcludePaths = paths
	}
}

func defaultConfig() Config {
	return Config{
		Level:   6,
		MinSize: 512,
		ContentTypes: []string{
			"text/html",
			"text/css",
			"text/plain",
			"application/javascript",
			"application/json",
		},
	}
}

// Middleware returns a pipeline entry that gzips eligible response bodies:
//
//	app.UseMiddleware(compress.Middleware(), boreas.WithOrder(100))
//
// A body is compressed when the client sent Accept-Encoding: gzip, the body
// meets the minimum size, its content type is in the eligible set, and no
// Content-Encoding is already present. Compression failures and bodies that
// grow under compression fall back to the identity encoding. Register with
// a high order so it observes the final body.
func Middleware(opts ...Option) boreas.MiddlewareFunc {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	writers := &sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(nil, config.Level)
		return w
	}}

	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		if res == nil || len(res.Body) < config.MinSize {
			return res, nil
		}
		if !acceptsGzip(ctx) {
			return res, nil
		}
		if res.Header.Get("Content-Encoding") != "" {
			return res, nil
		}
		if !typeEligible(res.ContentType(), config.ContentTypes) {
			return res, nil
		}
		for _, path := range config.ExcludePaths {
			if ctx.Path() == path {
				return res, nil
			}
		}

		var buf bytes.Buffer
		w := writers.Get().(*gzip.Writer)
		w.Reset(&buf)
		if _, err := w.Write(res.Body); err != nil {
			writers.Put(w)
			return res, nil
		}
		if err := w.Close(); err != nil {
			writers.Put(w)
			return res, nil
		}
		writers.Put(w)

		if buf.Len() >= len(res.Body) {
			return res, nil
		}

		res.Body = buf.Bytes()
		res.Header.Set("Content-Encoding", "gzip")
		res.Header.Add("Vary", "Accept-Encoding")
		res.Header.Del("Content-Length")
		return res, nil
	}
}

func acceptsGzip(ctx *boreas.Context) bool {
	for _, value := range ctx.Header()["Accept-Encoding"] {
		for _, encoding := range strings.Split(value, ",") {
			encoding = strings.TrimSpace(encoding)
			if encoding == "gzip" || strings.HasPrefix(encoding, "gzip;") {
				return true
			}
		}
	}
	return false
}

func typeEligible(contentType string, eligible []string) bool {
	if contentType == "" {
		return false
	}
	for _, prefix := range eligible {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
