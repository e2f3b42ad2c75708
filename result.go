package boreas

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
)

// StatusResult pairs a handler result body with an explicit status code.
// Returning WithStatus(body, 418) from a handler produces the body's usual
// encoding with status 418.
type StatusResult struct {
	Body   any
	Status int
}

// WithStatus wraps a handler result body with an explicit status code.
func WithStatus(body any, status int) StatusResult {
	return StatusResult{Body: body, Status: status}
}

// normalizeResult converts a handler result into the canonical Response.
// This is the one place result shapes are interpreted; the accepted set is
// closed: string, any map, []string / []any of string-like elements,
// StatusResult, and *Response. Anything else is a contract violation.
func normalizeResult(result any) (*Response, error) {
	switch value := result.(type) {
	case *Response:
		return value, nil
	case string:
		return stringResponse(value, http.StatusOK), nil
	case StatusResult:
		return normalizeStatusResult(value)
	case []string:
		return listResponse(stringsToAny(value), http.StatusOK)
	case []any:
		return listResponse(value, http.StatusOK)
	}

	if result != nil && reflect.ValueOf(result).Kind() == reflect.Map {
		return mapResponse(result, http.StatusOK)
	}

	return nil, &ContractViolation{
		Message: fmt.Sprintf("invalid handler result of type %T; accepted: string, map, list, WithStatus pair, *Response", result),
	}
}

func normalizeStatusResult(pair StatusResult) (*Response, error) {
	switch body := pair.Body.(type) {
	case string:
		return stringResponse(body, pair.Status), nil
	case []string:
		return listResponse(stringsToAny(body), pair.Status)
	case []any:
		return listResponse(body, pair.Status)
	}

	if pair.Body != nil && reflect.ValueOf(pair.Body).Kind() == reflect.Map {
		return mapResponse(pair.Body, pair.Status)
	}

	return nil, &ContractViolation{
		Message: fmt.Sprintf("invalid body of type %T in a WithStatus pair; accepted: string, map, list", pair.Body),
	}
}

// stringResponse renders a string result. Strings opening with '<' are
// sniffed: a well-formed markup document is served as application/xml,
// anything else that looks like markup as text/html, and plain strings as
// text/plain.
func stringResponse(body string, status int) *Response {
	contentType := "text/plain; charset=utf-8"
	if strings.HasPrefix(body, "<") {
		if isWellFormedMarkup(body) {
			contentType = "application/xml"
		} else {
			contentType = "text/html; charset=utf-8"
		}
	}
	return NewResponse(status, []byte(body), contentType)
}

func mapResponse(value any, status int) (*Response, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, &ContractViolation{Message: "map result is not JSON-encodable: " + err.Error()}
	}
	return NewResponse(status, body, "application/json"), nil
}

// listResponse renders a list result as a JSON array when every element is
// string-like (string or []byte). Any other element makes the whole list
// unprocessable, which is reported as a 500 response rather than an error.
func listResponse(items []any, status int) (*Response, error) {
	encoded := make([]string, len(items))
	for i, item := range items {
		switch element := item.(type) {
		case string:
			encoded[i] = element
		case []byte:
			encoded[i] = string(element)
		default:
			return InternalServerError("unable to process the list structure").Response(), nil
		}
	}

	body, err := json.Marshal(encoded)
	if err != nil {
		return nil, err
	}
	return NewResponse(status, body, "application/json"), nil
}

func stringsToAny(items []string) []any {
	anyItems := make([]any, len(items))
	for i, item := range items {
		anyItems[i] = item
	}
	return anyItems
}

// isWellFormedMarkup reports whether the string is one complete, well-formed
// markup document: a single root element with nothing but whitespace around
// it.
func isWellFormedMarkup(s string) bool {
	decoder := xml.NewDecoder(strings.NewReader(s))

	depth := 0
	rootSeen := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return rootSeen && depth == 0
		}
		if err != nil {
			return false
		}

		switch t := token.(type) {
		case xml.StartElement:
			if depth == 0 && rootSeen {
				return false
			}
			rootSeen = true
			depth += 1
		case xml.EndElement:
			depth -= 1
			if depth < 0 {
				return false
			}
		case xml.CharData:
			if depth == 0 && len(strings.TrimSpace(string(t))) > 0 {
				return false
			}
		}
	}
}
