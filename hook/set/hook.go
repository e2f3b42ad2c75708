// Package set provides a before hook that seeds a constant value on the
// request context.
package set

import "github.com/RobertWHurst/boreas"

// Hook returns a before hook that sets a value on the request context. The
// value is captured once when the hook is created and reused for every
// request. Values only exist for the duration of one request's dispatch.
//
// Use this to share a constant across stage hooks, the handler, and
// middleware:
//
//	app.Before(set.Hook("apiVersion", "v1"))
//
//	app.Rule("/info", func(ctx *boreas.Context) (any, error) {
//	    version := ctx.Get("apiVersion").(string) // "v1"
//	    return map[string]string{"version": version}, nil
//	})
//
// See also: setfn.Hook for per-request values, setvalue.Hook for values
// read through a pointer.
func Hook[V any](key string, value V) boreas.HookFunc {
	return func(ctx *boreas.Context) (any, error) {
		ctx.Set(key, value)
		return nil, nil
	}
}
