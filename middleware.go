package boreas

import (
	"reflect"
	"runtime"
	"sort"
)

// MiddlewareEntry is one registered middleware: the callable plus the
// metadata the pipeline filters on. Entries are created through
// Pipeline.Use and are immutable afterward.
type MiddlewareEntry struct {
	fn         MiddlewareFunc
	name       string
	order      int
	conditions []ConditionFunc
	group      string
	excludes   []string
	active     bool
	seq        int
}

// Name returns the entry's identity, used by exclusion relations and the
// executed set. Unnamed entries take their function's symbolic name.
func (e *MiddlewareEntry) Name() string {
	return e.name
}

// MiddlewareOption configures a middleware entry at registration.
type MiddlewareOption func(*MiddlewareEntry)

// WithOrder sets the entry's order. The pipeline runs strictly ascending by
// order; ties run in registration order.
func WithOrder(order int) MiddlewareOption {
	return func(e *MiddlewareEntry) {
		e.order = order
	}
}

// WithConditions gates the entry: it is skipped unless every condition
// passes for the request.
func WithConditions(conditions ...ConditionFunc) MiddlewareOption {
	return func(e *MiddlewareEntry) {
		e.conditions = append(e.conditions, conditions...)
	}
}

// WithGroup places the entry in a named group. Groups start active and can
// be switched off and on as a unit with Pipeline.SetGroupActive.
func WithGroup(group string) MiddlewareOption {
	return func(e *MiddlewareEntry) {
		e.group = group
	}
}

// WithExcludes declares a one-level exclusion relation: the entry is
// skipped if any of the named entries has already run in the current pass.
func WithExcludes(names ...string) MiddlewareOption {
	return func(e *MiddlewareEntry) {
		e.excludes = append(e.excludes, names...)
	}
}

// WithInactive registers the entry switched off. Inactive entries stay in
// the table but never run.
func WithInactive() MiddlewareOption {
	return func(e *MiddlewareEntry) {
		e.active = false
	}
}

// WithEntryName names the entry so other entries can exclude against it.
func WithEntryName(name string) MiddlewareOption {
	return func(e *MiddlewareEntry) {
		e.name = name
	}
}

// Pipeline is the ordered, filterable middleware table applied around each
// normalized response. It is populated before the application starts and is
// read-mostly afterward; registering entries during live dispatch is
// unsupported.
type Pipeline struct {
	entries     []*MiddlewareEntry
	groupActive map[string]bool
	nextSeq     int
}

func newPipeline() *Pipeline {
	return &Pipeline{groupActive: map[string]bool{}}
}

// Use registers a middleware entry. Entries keep a stable order: ascending
// by order with ties resolved by registration sequence.
func (p *Pipeline) Use(fn MiddlewareFunc, opts ...MiddlewareOption) *MiddlewareEntry {
	if fn == nil {
		configPanic("middleware must not be nil")
	}

	entry := &MiddlewareEntry{
		fn:     fn,
		active: true,
		seq:    p.nextSeq,
	}
	p.nextSeq += 1

	for _, opt := range opts {
		opt(entry)
	}
	if entry.name == "" {
		entry.name = funcName(fn)
	}

	p.entries = append(p.entries, entry)
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].order < p.entries[j].order
	})

	return entry
}

// SetGroupActive switches a middleware group on or off. Entries belonging
// to a group are skipped while the group is inactive. A group nobody has
// touched is active.
func (p *Pipeline) SetGroupActive(group string, active bool) {
	p.groupActive[group] = active
}

func (p *Pipeline) groupIsActive(group string) bool {
	active, set := p.groupActive[group]
	return !set || active
}

// Apply runs the pipeline over a response. Per entry: skip if its group is
// not active, skip if the entry is inactive, skip if any condition fails,
// skip if an entry it excludes against has already run in this pass.
// Everything else runs — there is no short-circuit — but an error from any
// entry aborts the remaining pipeline and propagates to the exception
// translator.
func (p *Pipeline) Apply(ctx *Context, res *Response) (*Response, error) {
	executed := map[string]bool{}

	for _, entry := range p.entries {
		if entry.group != "" && !p.groupIsActive(entry.group) {
			continue
		}
		if !entry.active {
			continue
		}
		if !conditionsPass(entry.conditions, ctx) {
			continue
		}
		if excludesExecuted(entry.excludes, executed) {
			continue
		}

		next, err := entry.fn(ctx, res)
		if err != nil {
			return nil, err
		}
		if next != nil {
			res = next
		}
		executed[entry.name] = true
	}

	return res, nil
}

func conditionsPass(conditions []ConditionFunc, ctx *Context) bool {
	for _, condition := range conditions {
		if condition != nil && !condition(ctx) {
			return false
		}
	}
	return true
}

func excludesExecuted(excludes []string, executed map[string]bool) bool {
	for _, name := range excludes {
		if executed[name] {
			return true
		}
	}
	return false
}

// funcName resolves a function value's symbolic name at registration time.
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	if f := runtime.FuncForPC(pc); f != nil {
		return f.Name()
	}
	return "anonymous"
}
