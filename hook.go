package boreas

import "sort"

// Stage names one of the two well-known points a hook can attach to:
// before the handler runs, or after the response is normalized.
type Stage string

const (
	StageBefore Stage = "before"
	StageAfter  Stage = "after"
)

func validStage(stage Stage) bool {
	return stage == StageBefore || stage == StageAfter
}

// HookEntry is one registered stage hook: the callable plus order,
// condition, and identity. Entries are created through HookRegistry.Add and
// are immutable afterward.
type HookEntry struct {
	fn        HookFunc
	name      string
	order     int
	condition ConditionFunc
	seq       int
}

// Name returns the hook's identity, used by stage exclusion sets. Unnamed
// hooks take their function's symbolic name.
func (e *HookEntry) Name() string {
	return e.name
}

// HookOption configures a stage hook at registration.
type HookOption func(*hookRegistration)

type hookRegistration struct {
	entry       *HookEntry
	group       string
	inherit     string
	excludeFrom []Stage
}

// WithHookOrder sets the hook's order. Hooks run ascending by order; ties
// run in registration order.
func WithHookOrder(order int) HookOption {
	return func(r *hookRegistration) {
		r.entry.order = order
	}
}

// WithHookCondition gates the hook: it is skipped for requests the
// condition rejects.
func WithHookCondition(condition ConditionFunc) HookOption {
	return func(r *hookRegistration) {
		r.entry.condition = condition
	}
}

// WithHookGroup registers the hook under a named group instead of the
// stage's direct list. Group-derived hooks join the same effective sequence
// and sort by the same rule.
func WithHookGroup(group string) HookOption {
	return func(r *hookRegistration) {
		r.group = group
	}
}

// WithHookExcludeFrom adds the hook to the named stages' exclusion sets:
// the hook never runs in those stages, even when group inheritance would
// carry it there.
func WithHookExcludeFrom(stages ...Stage) HookOption {
	return func(r *hookRegistration) {
		r.excludeFrom = append(r.excludeFrom, stages...)
	}
}

// WithHookInherit copies the named source group's hooks for this stage into
// the hook's own group, once, at registration time. Later additions to the
// source group are not retroactively visible. Requires WithHookGroup.
func WithHookInherit(source string) HookOption {
	return func(r *hookRegistration) {
		r.inherit = source
	}
}

// WithHookName names the hook so exclusion sets can target it.
func WithHookName(name string) HookOption {
	return func(r *hookRegistration) {
		r.entry.name = name
	}
}

// HookGroup registers hooks under a shared group name. Obtain one from
// App.HookGroup.
type HookGroup struct {
	registry *HookRegistry
	name     string
}

// Name returns the group's name.
func (g *HookGroup) Name() string {
	return g.name
}

// Before registers a before hook under the group.
func (g *HookGroup) Before(fn HookFunc, opts ...HookOption) *HookEntry {
	return g.registry.Add(StageBefore, fn, append(opts, WithHookGroup(g.name))...)
}

// After registers an after hook under the group.
func (g *HookGroup) After(fn HookFunc, opts ...HookOption) *HookEntry {
	return g.registry.Add(StageAfter, fn, append(opts, WithHookGroup(g.name))...)
}

// Inherit copies the hooks the source group holds for a stage into this
// group, once, now.
func (g *HookGroup) Inherit(stage Stage, source string) {
	g.registry.Inherit(stage, g.name, source)
}

// HookRegistry holds the before/after stage hooks and their named groups.
// The effective sequence for a stage is every non-excluded hook registered
// to that stage — directly or through a group — in one stable sort by
// order, ties by registration sequence. The original design this replaces
// sorted direct hooks but appended group hooks unsorted; that inconsistency
// was unintended and is deliberately not reproduced.
type HookRegistry struct {
	direct     map[Stage][]*HookEntry
	groups     map[string]map[Stage][]*HookEntry
	groupOrder []string
	excluded   map[Stage]map[string]bool
	nextSeq    int
}

func newHookRegistry() *HookRegistry {
	return &HookRegistry{
		direct:   map[Stage][]*HookEntry{},
		groups:   map[string]map[Stage][]*HookEntry{},
		excluded: map[Stage]map[string]bool{},
	}
}

// Add registers a hook for a stage. Configuration faults — a nil callable,
// an unknown stage, inherit without a group — panic with a ConfigError.
func (r *HookRegistry) Add(stage Stage, fn HookFunc, opts ...HookOption) *HookEntry {
	if fn == nil {
		configPanic("stage hook must not be nil")
	}
	if !validStage(stage) {
		configPanic("unknown stage: " + string(stage))
	}

	registration := &hookRegistration{
		entry: &HookEntry{fn: fn, seq: r.nextSeq},
	}
	r.nextSeq += 1

	for _, opt := range opts {
		opt(registration)
	}
	entry := registration.entry
	if entry.name == "" {
		entry.name = funcName(fn)
	}

	if registration.group != "" {
		r.groupBucket(registration.group)[stage] = append(r.groupBucket(registration.group)[stage], entry)
	} else {
		r.direct[stage] = append(r.direct[stage], entry)
	}

	for _, excludedStage := range registration.excludeFrom {
		if !validStage(excludedStage) {
			configPanic("unknown stage in exclusion set: " + string(excludedStage))
		}
		if r.excluded[excludedStage] == nil {
			r.excluded[excludedStage] = map[string]bool{}
		}
		r.excluded[excludedStage][entry.name] = true
	}

	if registration.inherit != "" {
		if registration.group == "" {
			configPanic("hook inheritance requires a group")
		}
		r.Inherit(stage, registration.group, registration.inherit)
	}

	return entry
}

func (r *HookRegistry) groupBucket(group string) map[Stage][]*HookEntry {
	bucket, ok := r.groups[group]
	if !ok {
		bucket = map[Stage][]*HookEntry{}
		r.groups[group] = bucket
		r.groupOrder = append(r.groupOrder, group)
	}
	return bucket
}

// Inherit copies the source group's hooks for one stage into the target
// group. The copy happens once, now: hooks added to the source afterwards
// are not picked up.
func (r *HookRegistry) Inherit(stage Stage, target, source string) {
	if !validStage(stage) {
		configPanic("unknown stage: " + string(stage))
	}

	sourceBucket, ok := r.groups[source]
	if !ok {
		return
	}
	targetBucket := r.groupBucket(target)
	targetBucket[stage] = append(targetBucket[stage], sourceBucket[stage]...)
}

// Exclude adds a hook name to a stage's exclusion set.
func (r *HookRegistry) Exclude(stage Stage, hookName string) {
	if !validStage(stage) {
		configPanic("unknown stage: " + string(stage))
	}
	if r.excluded[stage] == nil {
		r.excluded[stage] = map[string]bool{}
	}
	r.excluded[stage][hookName] = true
}

// effective assembles the filtered, ordered hook sequence for a stage.
func (r *HookRegistry) effective(stage Stage) []*HookEntry {
	entries := make([]*HookEntry, 0, len(r.direct[stage]))
	entries = append(entries, r.direct[stage]...)
	for _, group := range r.groupOrder {
		entries = append(entries, r.groups[group][stage]...)
	}

	excluded := r.excluded[stage]
	if len(excluded) > 0 {
		kept := entries[:0]
		for _, entry := range entries {
			if !excluded[entry.name] {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].seq < entries[j].seq
	})

	return entries
}
