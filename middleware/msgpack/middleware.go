// Package msgpack re-encodes JSON responses as MessagePack for clients
// that ask for it.
package msgpack

import (
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/RobertWHurst/boreas"
)

// ContentType is the media type transcoded responses are served under.
const ContentType = "application/msgpack"

// Middleware returns a pipeline entry that transcodes application/json
// response bodies into MessagePack when the request's Accept header names
// application/msgpack or application/x-msgpack. Responses in other formats,
// and responses whose body does not decode as JSON, pass through untouched.
//
//	app.UseMiddleware(msgpack.Middleware(), boreas.WithOrder(100))
//
// Handlers keep returning maps and JSON-shaped results; the wire format is
// purely a pipeline concern. Register the entry before any compression
// middleware so the compressed bytes are the MessagePack ones.
func Middleware() boreas.MiddlewareFunc {
	return func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		if res == nil || len(res.Body) == 0 {
			return res, nil
		}
		if !strings.HasPrefix(res.ContentType(), "application/json") {
			return res, nil
		}
		if !acceptsMsgpack(ctx.Header().Get("Accept")) {
			return res, nil
		}

		var decoded any
		if err := json.Unmarshal(res.Body, &decoded); err != nil {
			return res, nil
		}
		encoded, err := msgpack.Marshal(decoded)
		if err != nil {
			return res, nil
		}

		transcoded := boreas.NewResponse(res.Status, encoded, ContentType)
		for key, values := range res.Header {
			if key == "Content-Type" || key == "Content-Length" {
				continue
			}
			for _, value := range values {
				transcoded.Header.Add(key, value)
			}
		}
		return transcoded, nil
	}
}

func acceptsMsgpack(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mediaType == ContentType || mediaType == "application/x-msgpack" {
			return true
		}
	}
	return false
}
