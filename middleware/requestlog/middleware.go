// Package requestlog emits one structured log line per dispatched request.
package requestlog

import (
	"log/slog"
	"time"

	"github.com/RobertWHurst/boreas"
)

// Config controls request logging.
type Config struct {
	// Logger receives the request lines. Defaults to slog.Default().
	Logger *slog.Logger

	// Level is the level request lines are logged at.
	Level slog.Level

	// SkipPaths are request paths never logged.
	SkipPaths []string
}

// Option configures the request log middleware.
type Option func(*Config)

// WithLogger sets the logger request lines go to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithLevel sets the level request lines are logged at.
func WithLevel(level slog.Level) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithSkipPaths sets request paths never logged. Health and metrics
// endpoints are the usual candidates.
func WithSkipPaths(paths ...string) Option {
	return func(c *Config) {
		c.SkipPaths = paths
	}
}

func defaultConfig() Config {
	return Config{
		Level: slog.LevelInfo,
	}
}

// Middleware returns a pipeline entry that logs one line per request:
//
//	app.UseMiddleware(requestlog.Middleware(), boreas.WithOrder(1000))
//
// Each line carries the method, path, response status, elapsed time since
// dispatch began, the client address, and the user agent. Register it with
// the highest order in the pipeline so the status it records is the one the
// client sees.
func Middleware(opts ...Option) boreas.MiddlewareFunc {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		for _, path := range config.SkipPaths {
			if ctx.Path() == path {
				return res, nil
			}
		}

		logger := config.Logger
		if logger == nil {
			logger = slog.Default()
		}

		status := 0
		if res != nil {
			status = res.Status
		}

		logger.Log(ctx.Context(), config.Level, "request",
			"method", ctx.Method(),
			"path", ctx.Path(),
			"status", status,
			"duration", time.Since(ctx.ReceivedAt()),
			"client", ctx.RemoteAddr(),
			"user_agent", ctx.UserAgent(),
		)
		return res, nil
	}
}
