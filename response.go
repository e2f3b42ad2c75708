package boreas

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Response is the single canonical shape every handler result is normalized
// into before hooks and middleware observe it: a status code, headers, and a
// fully buffered body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with the given status and body. The
// content type is stored on the headers.
func NewResponse(status int, body []byte, contentType string) *Response {
	res := &Response{
		Status: status,
		Header: http.Header{},
		Body:   body,
	}
	if contentType != "" {
		res.Header.Set("Content-Type", contentType)
	}
	return res
}

// TextResponse creates a 200 text/plain response.
func TextResponse(body string) *Response {
	return NewResponse(http.StatusOK, []byte(body), "text/plain; charset=utf-8")
}

// HTMLResponse creates a 200 text/html response.
func HTMLResponse(body string) *Response {
	return NewResponse(http.StatusOK, []byte(body), "text/html; charset=utf-8")
}

// JSONResponse creates a 200 application/json response by marshalling the
// given value.
func JSONResponse(value any) (*Response, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return NewResponse(http.StatusOK, body, "application/json"), nil
}

// EmptyResponse creates a response with the given status and no body.
func EmptyResponse(status int) *Response {
	return NewResponse(status, nil, "")
}

// RedirectResponse creates a redirect to the given location. Status must be
// a 3xx code; 0 means 307.
func RedirectResponse(location string, status int) *Response {
	if status == 0 {
		status = http.StatusTemporaryRedirect
	}
	res := NewResponse(status, nil, "")
	res.Header.Set("Location", location)
	return res
}

// WithHeader sets a header on the response and returns it for chaining.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}

// ContentType returns the response's Content-Type header, if any.
func (r *Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// send writes the response to a connection as a response.start event
// followed by one response.body event.
func (r *Response) send(ctx *Context) error {
	header := r.Header
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	if err := ctx.conn.Send(ctx.stdCtx, &Event{
		Type:   EventResponseStart,
		Status: r.Status,
		Header: header,
	}); err != nil {
		return err
	}

	return ctx.conn.Send(ctx.stdCtx, &Event{
		Type: EventResponseBody,
		Body: r.Body,
	})
}
