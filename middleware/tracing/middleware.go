// Package tracing records an OpenTelemetry span for every dispatched
// request.
package tracing

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RobertWHurst/boreas"
)

const defaultTracerName = "github.com/RobertWHurst/boreas"

// Config controls span recording.
type Config struct {
	// TracerName names the tracer resolved from the global provider.
	TracerName string

	// Filter selects the requests to trace. Nil traces everything.
	Filter func(ctx *boreas.Context) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(ctx *boreas.Context) []attribute.KeyValue
}

// Option configures the tracing middleware.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithFilter sets a predicate selecting the requests to trace.
func WithFilter(filter func(ctx *boreas.Context) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor, called once per
// traced request.
func WithAttributeExtractor(extractor func(ctx *boreas.Context) []attribute.KeyValue) Option {
	return func(c *Config) {
		c.AttributeExtractor = extractor
	}
}

func defaultConfig() Config {
	return Config{
		TracerName: defaultTracerName,
	}
}

// Middleware returns a pipeline entry recording one server span per request:
//
//	app.UseMiddleware(tracing.Middleware(), boreas.WithOrder(950))
//
// The pipeline observes a request after its handler has run, so spans are
// recorded retrospectively: each starts at the time dispatch began and ends
// when the entry runs. Span names follow the "METHOD route" convention with
// the matched route's template; responses with a 5xx status mark the span as
// an error. The tracer comes from the global OpenTelemetry provider, so
// configure otel.SetTracerProvider before serving.
func Middleware(opts ...Option) boreas.MiddlewareFunc {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tracer := otel.Tracer(config.TracerName)

	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		if config.Filter != nil && !config.Filter(ctx) {
			return res, nil
		}

		route := ctx.Path()
		if r := ctx.Route(); r != nil {
			route = r.Pattern.String()
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", ctx.Method()),
			attribute.String("url.path", ctx.Path()),
			attribute.String("http.route", route),
			attribute.String("client.address", ctx.RemoteAddr()),
		}
		if agent := ctx.UserAgent(); agent != "" {
			attrs = append(attrs, attribute.String("user_agent.original", agent))
		}
		status := 0
		if res != nil {
			status = res.Status
			attrs = append(attrs, attribute.Int("http.response.status_code", status))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ctx)...)
		}

		_, span := tracer.Start(ctx.Context(), ctx.Method()+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(ctx.ReceivedAt()),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End(trace.WithTimestamp(time.Now()))

		return res, nil
	}
}
