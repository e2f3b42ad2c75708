package boreas

// RequestTransformer is a special type of handler object that reshapes the
// inbound request after a route matches and before its handler runs. This is
// most useful for decoding or re-encoding request bodies. An error aborts
// dispatch and goes to the exception translator.
type RequestTransformer interface {
	TransformRequest(ctx *Context) error
}

// ResponseTransformer reshapes the outbound response after the middleware
// pipeline has run. Returning nil keeps the current response.
type ResponseTransformer interface {
	TransformResponse(ctx *Context, res *Response) (*Response, error)
}
