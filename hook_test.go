package boreas

import (
	"testing"
)

func noopHook(ctx *Context) (any, error) {
	return nil, nil
}

func hookNames(entries []*HookEntry) []string {
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names
}

func sameNames(got, expected []string) bool {
	if len(got) != len(expected) {
		return false
	}
	for i := range got {
		if got[i] != expected[i] {
			return false
		}
	}
	return true
}

func TestHookRegistryOrdersAcrossDirectAndGroups(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("direct-late"), WithHookOrder(30))
	registry.Add(StageBefore, noopHook, WithHookName("grouped-early"), WithHookOrder(10), WithHookGroup("auth"))
	registry.Add(StageBefore, noopHook, WithHookName("direct-mid"), WithHookOrder(20))

	// Direct and group hooks merge into one sequence sorted by order; the
	// group hook with the lowest order runs first even though direct hooks
	// were registered around it.
	expected := []string{"grouped-early", "direct-mid", "direct-late"}
	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestHookRegistryTiesKeepRegistrationOrder(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("first"))
	registry.Add(StageBefore, noopHook, WithHookName("second"), WithHookGroup("extras"))
	registry.Add(StageBefore, noopHook, WithHookName("third"))

	expected := []string{"first", "second", "third"}
	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestHookRegistryStagesAreIndependent(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("pre"))
	registry.Add(StageAfter, noopHook, WithHookName("post"))

	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, []string{"pre"}) {
		t.Errorf("unexpected before hooks %v", got)
	}
	if got := hookNames(registry.effective(StageAfter)); !sameNames(got, []string{"post"}) {
		t.Errorf("unexpected after hooks %v", got)
	}
}

func TestHookRegistryInheritCopiesOnce(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("base-a"), WithHookGroup("base"))
	registry.Add(StageBefore, noopHook, WithHookName("derived"), WithHookGroup("derived"), WithHookInherit("base"))
	registry.Add(StageBefore, noopHook, WithHookName("base-b"), WithHookGroup("base"))

	// base-a was copied into the derived group at inherit time, so it
	// appears twice in the effective sequence. base-b came later and is
	// only present through its own group.
	got := hookNames(registry.effective(StageBefore))
	counts := map[string]int{}
	for _, name := range got {
		counts[name] += 1
	}
	if counts["base-a"] != 2 {
		t.Errorf("expected base-a twice (own group and inherited copy), got %v", got)
	}
	if counts["base-b"] != 1 {
		t.Errorf("expected base-b once, got %v", got)
	}
	if counts["derived"] != 1 {
		t.Errorf("expected derived once, got %v", got)
	}
}

func TestHookRegistryInheritUnknownSourceIsNoop(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("only"), WithHookGroup("target"), WithHookInherit("ghost"))

	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, []string{"only"}) {
		t.Errorf("expected inheritance from a missing group to add nothing, got %v", got)
	}
}

func TestHookRegistryInheritIsStageScoped(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageAfter, noopHook, WithHookName("base-after"), WithHookGroup("base"))
	registry.Add(StageBefore, noopHook, WithHookName("derived-before"), WithHookGroup("derived"), WithHookInherit("base"))

	// The source group has no before hooks, so nothing is copied.
	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, []string{"derived-before"}) {
		t.Errorf("expected only the derived hook, got %v", got)
	}
	if got := hookNames(registry.effective(StageAfter)); !sameNames(got, []string{"base-after"}) {
		t.Errorf("expected the source's after hook untouched, got %v", got)
	}
}

func TestHookRegistryExcludeFiltersByName(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("kept"))
	registry.Add(StageBefore, noopHook, WithHookName("dropped"))
	registry.Exclude(StageBefore, "dropped")

	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, []string{"kept"}) {
		t.Errorf("expected the excluded hook to be filtered, got %v", got)
	}
}

func TestHookRegistryExcludeFromOption(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("shared"), WithHookGroup("common"))
	registry.Add(StageAfter, noopHook, WithHookName("tagger"), WithHookExcludeFrom(StageBefore))

	// The exclusion set is stage wide and name keyed. Registering a hook
	// named like a before hook with an exclusion from before removes both.
	registry.Add(StageBefore, noopHook, WithHookName("tagger"))

	got := hookNames(registry.effective(StageBefore))
	for _, name := range got {
		if name == "tagger" {
			t.Errorf("expected tagger to be excluded from the before stage, got %v", got)
		}
	}
	if got := hookNames(registry.effective(StageAfter)); !sameNames(got, []string{"tagger"}) {
		t.Errorf("expected tagger to still run in its own stage, got %v", got)
	}
}

func TestHookRegistryExclusionSurvivesInheritance(t *testing.T) {
	registry := newHookRegistry()

	registry.Add(StageBefore, noopHook, WithHookName("noisy"), WithHookGroup("base"))
	registry.Add(StageBefore, noopHook, WithHookName("quiet"), WithHookGroup("derived"), WithHookInherit("base"))
	registry.Exclude(StageBefore, "noisy")

	// The inherited copy shares the name, so the exclusion removes both the
	// original and the copy.
	if got := hookNames(registry.effective(StageBefore)); !sameNames(got, []string{"quiet"}) {
		t.Errorf("expected only the quiet hook, got %v", got)
	}
}

func TestHookRegistryAddPanics(t *testing.T) {
	tests := []struct {
		name string
		add  func(r *HookRegistry)
	}{
		{
			name: "nil hook",
			add: func(r *HookRegistry) {
				r.Add(StageBefore, nil)
			},
		},
		{
			name: "unknown stage",
			add: func(r *HookRegistry) {
				r.Add(Stage("during"), noopHook)
			},
		},
		{
			name: "inherit without group",
			add: func(r *HookRegistry) {
				r.Add(StageBefore, noopHook, WithHookInherit("base"))
			},
		},
		{
			name: "unknown stage in exclusion set",
			add: func(r *HookRegistry) {
				r.Add(StageBefore, noopHook, WithHookExcludeFrom(Stage("during")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					t.Fatal("expected a panic")
				}
				if _, ok := recovered.(*ConfigError); !ok {
					t.Fatalf("expected a ConfigError, got %T", recovered)
				}
			}()
			tt.add(newHookRegistry())
		})
	}
}

func TestHookGroupHandle(t *testing.T) {
	app := New()

	group := app.HookGroup("session")
	if group.Name() != "session" {
		t.Errorf("expected group name %q, got %q", "session", group.Name())
	}

	group.Before(noopHook, WithHookName("load"))
	group.After(noopHook, WithHookName("save"))

	if got := hookNames(app.hooks.effective(StageBefore)); !sameNames(got, []string{"load"}) {
		t.Errorf("expected the group's before hook, got %v", got)
	}
	if got := hookNames(app.hooks.effective(StageAfter)); !sameNames(got, []string{"save"}) {
		t.Errorf("expected the group's after hook, got %v", got)
	}

	other := app.HookGroup("audit")
	other.Inherit(StageBefore, "session")
	got := hookNames(app.hooks.effective(StageBefore))
	if len(got) != 2 {
		t.Errorf("expected the inherited copy to double the before hooks, got %v", got)
	}
}

func TestHookGroupRequiresName(t *testing.T) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			t.Fatal("expected a panic")
		}
		if _, ok := recovered.(*ConfigError); !ok {
			t.Fatalf("expected a ConfigError, got %T", recovered)
		}
	}()

	New().HookGroup("")
}
