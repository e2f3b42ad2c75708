// Package setfn provides a before hook that seeds a freshly generated value
// on the request context.
package setfn

import "github.com/RobertWHurst/boreas"

// Hook returns a before hook that sets a dynamically generated value on the
// request context. The valueFn function is called once per request, so each
// request sees its own value.
//
// Use this when every request needs a unique value, request IDs being the
// usual case:
//
//	app.Before(setfn.Hook("requestID", uuid.NewString))
//
//	app.Rule("/data", func(ctx *boreas.Context) (any, error) {
//	    requestID := ctx.Get("requestID").(string) // unique per request
//	    return map[string]string{"requestID": requestID}, nil
//	})
//
// See also: set.Hook for constant values, setvalue.Hook for values read
// through a pointer.
func Hook[V any](key string, valueFn func() V) boreas.HookFunc {
	return func(ctx *boreas.Context) (any, error) {
		ctx.Set(key, valueFn())
		return nil, nil
	}
}
