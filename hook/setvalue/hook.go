// Package setvalue provides a before hook that seeds the value behind a
// pointer on the request context.
package setvalue

import "github.com/RobertWHurst/boreas"

// Hook returns a before hook that dereferences value at dispatch time and
// sets the result on the request context. Each request sees the pointer's
// current value, not the value it held at registration, so state updated
// between requests flows through without re-registering.
//
//	version := "v1"
//	app.Before(setvalue.Hook("apiVersion", &version))
//	// later: version = "v2" — subsequent requests see "v2"
//
// The context stores a copy of the dereferenced value; handlers cannot
// mutate the registered variable through it.
//
// See also: set.Hook for constant values, setfn.Hook for computed values.
func Hook[V any](key string, value *V) boreas.HookFunc {
	return func(ctx *boreas.Context) (any, error) {
		ctx.Set(key, *value)
		return nil, nil
	}
}
