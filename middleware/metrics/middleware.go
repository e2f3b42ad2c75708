// Package metrics records Prometheus series for dispatched requests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RobertWHurst/boreas"
)

// Config controls metric collection.
type Config struct {
	// Namespace is the metric namespace.
	Namespace string

	// Subsystem is the metric subsystem.
	Subsystem string

	// ConstLabels are constant labels added to every series.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	Buckets []float64

	// Registry receives the collectors.
	Registry prometheus.Registerer
}

// Option configures the metrics middleware.
type Option func(*Config)

// WithNamespace sets the metric namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels added to every series.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets ...float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registry the collectors register with.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "boreas",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Middleware returns a pipeline entry recording request metrics:
//
//	app.UseMiddleware(metrics.Middleware(), boreas.WithOrder(900))
//
// Two series are collected: requests_total, a counter by method, route, and
// status, and request_duration_seconds, a histogram by method and route. The
// route label is the matched route's template rather than the raw path, so
// label cardinality stays bounded; requests no route matched are labeled
// "unrouted". The collectors register when Middleware is called, so call it
// once per registry.
func Middleware(opts ...Option) boreas.MiddlewareFunc {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	requestsTotal := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "requests_total",
		Help:        "Requests dispatched, by method, route, and status.",
		ConstLabels: config.ConstLabels,
	}, []string{"method", "route", "status"})

	requestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "request_duration_seconds",
		Help:        "Request dispatch duration in seconds.",
		ConstLabels: config.ConstLabels,
		Buckets:     config.Buckets,
	}, []string{"method", "route"})

	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		route := "unrouted"
		if r := ctx.Route(); r != nil {
			route = r.Pattern.String()
		}
		status := 0
		if res != nil {
			status = res.Status
		}

		requestsTotal.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(ctx.Method(), route).Observe(time.Since(ctx.ReceivedAt()).Seconds())
		return res, nil
	}
}
