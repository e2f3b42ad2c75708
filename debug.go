package boreas

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Debug pages trade information disclosure for diagnostic richness. They
// are only ever rendered while the application runs with debug enabled;
// production requests get the generic status pages instead.

const debugPageStyle = `body{font-family:Arial,sans-serif;background:#f4f4f4;margin:0;padding:40px}
.container{max-width:960px;margin:0 auto}
h1{color:#333}
.details{background:#fffacd;padding:24px;border-radius:8px;box-shadow:0 0 10px rgba(0,0,0,.1)}
.details p{margin:6px 0}
.details span{font-weight:bold}
.routes{background:#fffacd;border:1px solid #000;border-radius:5px;padding:12px;margin-top:16px}
.routes ul{list-style:none;margin:0;padding:0}
.routes li{margin-bottom:6px;color:#555}
.warning{background:#ffeaea;border:1px solid #e74c3c;border-radius:5px;padding:12px;margin-top:16px;color:#e74c3c;font-weight:bold}
pre{background:#2d2d2d;color:#f8f8f2;padding:16px;border-radius:5px;overflow-x:auto;text-align:left}
p.note{margin-top:24px;color:#555;font-size:.9em}`

const debugPageNote = "You're seeing this page because the application runs with debug enabled. Disable debug to serve the standard error page instead."

var spewConfig = spew.ConfigState{Indent: "  ", SortKeys: true, DisableMethods: true}

func debugPageShell(title, body string) *Response {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>%s</title>
<style>%s</style>
</head>
<body>
<div class="container">
%s
<p class="note">%s</p>
</div>
</body>
</html>`, html.EscapeString(title), debugPageStyle, body, debugPageNote)

	return &Response{Status: http.StatusOK, Header: http.Header{}, Body: []byte(page)}
}

func requestDetails(ctx *Context) string {
	url := ctx.Path()
	if ctx.scope.RawQuery != "" {
		url += "?" + ctx.scope.RawQuery
	}
	return fmt.Sprintf(`<p>Requested Method: <span>%s</span></p>
<p>Requested URL: <span>%s</span></p>
<p>Client Address: <span>%s</span></p>
<p>User Agent: <span>%s</span></p>`,
		html.EscapeString(ctx.Method()),
		html.EscapeString(url),
		html.EscapeString(ctx.RemoteAddr()),
		html.EscapeString(ctx.UserAgent()))
}

func routeTableList(descriptors []*RouteDescriptor) string {
	var items strings.Builder
	for _, descriptor := range descriptors {
		line, _ := descriptor.MarshalText()
		items.WriteString("<li><b>" + html.EscapeString(string(line)) + "</b></li>\n")
	}
	return items.String()
}

// debugPage404 renders the not-found diagnostic: request details plus the
// live route table, so a missing registration is visible at a glance.
func debugPage404(ctx *Context, descriptors []*RouteDescriptor) *Response {
	body := fmt.Sprintf(`<h1>404 — Not Found</h1>
<div class="details">
%s
<div class="routes"><h3>Routing Table:</h3><ul>
%s</ul></div>
<div class="warning">Path %q matched no registered route.</div>
</div>`, requestDetails(ctx), routeTableList(descriptors), html.EscapeString(ctx.Path()))

	res := debugPageShell("404 Not Found", body)
	res.Status = http.StatusNotFound
	res.Header.Set("Content-Type", "text/html; charset=utf-8")
	return res
}

// debugPage405 renders the method-not-allowed diagnostic with the
// accumulated allowed-method set.
func debugPage405(ctx *Context, allowed string) *Response {
	body := fmt.Sprintf(`<h1>405 — Method Not Allowed</h1>
<div class="details">
%s
<p>Allowed Methods: <span>%s</span></p>
<div class="warning">Method %s is not allowed for this path.</div>
</div>`, requestDetails(ctx), html.EscapeString(allowed), html.EscapeString(ctx.Method()))

	res := debugPageShell("405 Method Not Allowed", body)
	res.Status = http.StatusMethodNotAllowed
	res.Header.Set("Content-Type", "text/html; charset=utf-8")
	if allowed != "" {
		res.Header.Set("Allow", allowed)
	}
	return res
}

// debugPageError renders the generic diagnostic for an unanticipated
// failure: the error, the stack captured at the containment boundary, and a
// dump of the request's context values.
func debugPageError(ctx *Context, err error, stack string) *Response {
	var sections strings.Builder

	sections.WriteString("<h1>500 — Internal Server Error</h1>\n<div class=\"details\">\n")
	sections.WriteString(requestDetails(ctx))
	sections.WriteString(fmt.Sprintf("<div class=\"warning\">%s</div>\n", html.EscapeString(err.Error())))
	if stack != "" {
		sections.WriteString("<h3>Stack:</h3>\n<pre>" + html.EscapeString(stack) + "</pre>\n")
	}
	if len(ctx.associatedValues) > 0 {
		sections.WriteString("<h3>Context Values:</h3>\n<pre>" +
			html.EscapeString(spewConfig.Sdump(ctx.associatedValues)) + "</pre>\n")
	}
	sections.WriteString("</div>")

	res := debugPageShell("500 Internal Server Error", sections.String())
	res.Status = http.StatusInternalServerError
	res.Header.Set("Content-Type", "text/html; charset=utf-8")
	return res
}
