// Package json rewrites error responses into JSON envelopes for clients
// that ask for JSON.
package json

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/RobertWHurst/boreas"
)

// envelope is the JSON error shape clients receive in place of the default
// text and HTML error pages.
type envelope struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Middleware returns a pipeline entry that replaces text error responses
// with a JSON envelope when the request's Accept header names
// application/json. Responses below 400, responses already carrying JSON,
// and requests that never asked for JSON pass through untouched.
//
//	app.UseMiddleware(json.Middleware(), boreas.WithOrder(100))
//
// The envelope carries the error text and the status code:
//
//	{"error": "allowed methods: GET, POST", "status": 405}
//
// Debug error pages are rewritten too, losing their diagnostics; register
// the entry with a condition excluding debug mode if the pages should
// survive.
func Middleware() boreas.MiddlewareFunc {
	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		if res == nil || res.Status < 400 {
			return res, nil
		}
		if !acceptsJSON(ctx.Header().Get("Accept")) {
			return res, nil
		}

		contentType := res.ContentType()
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
		case strings.HasPrefix(contentType, "text/html"):
		default:
			return res, nil
		}

		detail := http.StatusText(res.Status)
		if strings.HasPrefix(contentType, "text/plain") && len(res.Body) > 0 {
			detail = string(res.Body)
		}

		body, err := json.Marshal(envelope{Error: detail, Status: res.Status})
		if err != nil {
			return res, nil
		}

		rewritten := boreas.NewResponse(res.Status, body, "application/json")
		for key, values := range res.Header {
			if key == "Content-Type" || key == "Content-Length" {
				continue
			}
			for _, value := range values {
				rewritten.Header.Add(key, value)
			}
		}
		return rewritten, nil
	}
}

// acceptsJSON reports whether the Accept header explicitly names JSON.
// Wildcards do not count: a browser's */* should keep the HTML pages.
func acceptsJSON(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mediaType == "application/json" {
			return true
		}
	}
	return false
}
