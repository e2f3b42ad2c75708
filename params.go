package boreas

import "strconv"

// PathParams holds the values captured from a request path by a route
// pattern. Values are coerced from their raw string form: runs of digits
// become int64, values parsable as a number become float64, and everything
// else stays a string.
type PathParams map[string]any

// Get returns the coerced value for the given parameter name, or nil if the
// parameter is not present.
func (p PathParams) Get(name string) any {
	return p[name]
}

// Has reports whether a parameter with the given name is present.
func (p PathParams) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// String returns the parameter as a string. Numeric parameters are formatted
// back into their decimal form.
func (p PathParams) String(name string) string {
	switch value := p[name].(type) {
	case string:
		return value
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return ""
}

// Int returns the parameter as an int64. The second return value is false if
// the parameter is missing or was not coerced to an integer.
func (p PathParams) Int(name string) (int64, bool) {
	value, ok := p[name].(int64)
	return value, ok
}

// Float returns the parameter as a float64. Integer parameters are widened.
// The second return value is false if the parameter is missing or is not
// numeric.
func (p PathParams) Float(name string) (float64, bool) {
	switch value := p[name].(type) {
	case float64:
		return value, true
	case int64:
		return float64(value), true
	}
	return 0, false
}

func isDigits(raw string) bool {
	if raw == "" {
		return false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// coerceParamValue turns a raw path capture into its most specific scalar
// form: int64 for digit runs, float64 for anything the number parser
// accepts, the raw string otherwise.
func coerceParamValue(raw string) any {
	if isDigits(raw) {
		if intValue, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return intValue
		}
	}
	if floatValue, err := strconv.ParseFloat(raw, 64); err == nil {
		return floatValue
	}
	return raw
}

// coerceCapturesInto clears params and fills it with the coerced form of
// each raw capture.
func coerceCapturesInto(captures map[string]string, params *PathParams) {
	if *params == nil {
		*params = make(PathParams, len(captures))
	}
	for key := range *params {
		delete(*params, key)
	}
	for key, raw := range captures {
		(*params)[key] = coerceParamValue(raw)
	}
}
