// Package trustedhost guards against Host header attacks by replacing the
// response with a 403 when a request names a host outside the allowed set.
package trustedhost

import (
	"strings"

	"github.com/RobertWHurst/boreas"
)

// Config controls host validation.
type Config struct {
	// AllowedHosts are the hosts requests may address. "*" allows any host.
	AllowedHosts []string

	// AllowSubdomains also accepts subdomains of every allowed host.
	AllowSubdomains bool

	// EnforceHTTPS redirects allowed plain-http requests to https with a 301.
	EnforceHTTPS bool

	// RedirectWWW redirects "www."-prefixed hosts to the bare host with a 301.
	RedirectWWW bool
}

// Option configures the trusted host middleware.
type Option func(*Config)

// WithAllowedHosts sets the allowed host list.
func WithAllowedHosts(hosts ...string) Option {
	return func(c *Config) {
		c.AllowedHosts = hosts
	}
}

// WithoutSubdomains disables the subdomain allowance.
func WithoutSubdomains() Option {
	return func(c *Config) {
		c.AllowSubdomains = false
	}
}

// WithHTTPSRedirect enables the https redirect for allowed hosts.
func WithHTTPSRedirect() Option {
	return func(c *Config) {
		c.EnforceHTTPS = true
	}
}

// WithWWWRedirect enables the www-to-bare-host redirect.
func WithWWWRedirect() Option {
	return func(c *Config) {
		c.RedirectWWW = true
	}
}

func defaultConfig() Config {
	return Config{
		AllowedHosts:    []string{"*"},
		AllowSubdomains: true,
	}
}

// Middleware returns a pipeline entry validating the request's host:
//
//	app.UseMiddleware(trustedhost.Middleware(
//	    trustedhost.WithAllowedHosts("example.com"),
//	), boreas.WithOrder(-100), boreas.WithEntryName("trustedhost"))
//
// Requests without a host or with a disallowed one get a 403 in place of
// whatever the handler produced. Register it with a low order so it runs
// before response-shaping entries.
func Middleware(opts ...Option) boreas.MiddlewareFunc {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		host := stripPort(ctx.Host())
		if host == "" {
			return boreas.Forbidden("Host not allowed").Response(), nil
		}

		if config.RedirectWWW && strings.HasPrefix(host, "www.") {
			return redirect(ctx, ctx.Scheme(), strings.TrimPrefix(host, "www.")), nil
		}

		if !hostAllowed(host, config) {
			return boreas.Forbidden("Host not allowed").Response(), nil
		}

		if config.EnforceHTTPS && ctx.Scheme() != "https" {
			return redirect(ctx, "https", host), nil
		}

		return res, nil
	}
}

func hostAllowed(host string, config Config) bool {
	for _, allowed := range config.AllowedHosts {
		if allowed == "*" || host == allowed {
			return true
		}
		if config.AllowSubdomains && strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func redirect(ctx *boreas.Context, scheme, host string) *boreas.Response {
	location := scheme + "://" + host + ctx.Path()
	if query := ctx.Query().Encode(); query != "" {
		location += "?" + query
	}
	return boreas.RedirectResponse(location, 301)
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
