package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/modgraph/internal/module"
	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/changes"
	"github.com/kingrea/modgraph/internal/workflow/resolver"
	"github.com/kingrea/modgraph/internal/workflow/scheduler"
)

func testCatalog() *module.Catalog {
	return module.MustCatalog([]module.Descriptor{
		module.Describe("FieldBoundaryProvider", module.Provides("FieldBoundary")),
		module.Describe("BehaviorControl", module.Requires("UpperFieldBoundary"), module.Requires("JointAngles"), module.Provides("BehaviorStatus")),
		module.Describe("Unused", module.Provides("Nothing")),
	})
}

func testConfiguration() workflow.Configuration {
	return workflow.Configuration{
		Threads: []workflow.Thread{
			{Name: "Upper", Assignments: []workflow.Assignment{{Representation: "FieldBoundary", Module: "FieldBoundaryProvider"}}},
			{Name: "Cognition", Assignments: []workflow.Assignment{{Representation: "BehaviorStatus", Module: "BehaviorControl"}}},
		},
		Defaults: []string{"JointAngles"},
	}
}

func build(t *testing.T, catalog *module.Catalog, prev, cfg workflow.Configuration) *Snapshot {
	t.Helper()
	res, err := resolver.New(catalog)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	shared, err := res.Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sched, err := scheduler.New(catalog)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	orders, err := sched.Plan(cfg, shared)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	snap, err := Build(Input{
		Configuration: cfg,
		Catalog:       catalog,
		Shared:        shared,
		Orders:        orders,
		Reset:         changes.Diff(prev, cfg),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return snap
}

func TestBuildExecutionViews(t *testing.T) {
	snap := build(t, testCatalog(), workflow.Configuration{}, testConfiguration())
	want := []ExecutionView{
		{
			Thread:    "Upper",
			Providers: []workflow.Provider{{Module: "FieldBoundaryProvider", Representation: "FieldBoundary", Thread: "Upper"}},
			Sent:      map[string][]string{"Cognition": {"FieldBoundary"}},
			Modules: []ModuleFlag{
				{Name: "BehaviorControl"},
				{Name: "FieldBoundaryProvider", Required: true},
				{Name: "Unused"},
			},
		},
		{
			Thread:    "Cognition",
			Providers: []workflow.Provider{{Module: "BehaviorControl", Representation: "BehaviorStatus", Thread: "Cognition"}},
			Received:  map[string][]workflow.Transfer{"Upper": {{Representation: "FieldBoundary", Alias: "UpperFieldBoundary"}}},
			Modules: []ModuleFlag{
				{Name: "BehaviorControl", Required: true},
				{Name: "FieldBoundaryProvider"},
				{Name: "Unused"},
			},
		},
	}
	if diff := cmp.Diff(want, snap.Threads); diff != "" {
		t.Fatalf("views mismatch (-want +got):\n%s", diff)
	}
	if len(snap.Reset) != 0 {
		t.Fatalf("first resolution must not reset, got %v", snap.Reset)
	}
	if diff := cmp.Diff([]string{"Upper", "Cognition"}, snap.ThreadNames()); diff != "" {
		t.Fatalf("thread names mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	catalog := testCatalog()
	cfg := testConfiguration()
	first := build(t, catalog, workflow.Configuration{}, cfg)
	second := build(t, catalog, cfg, cfg)
	if diff := cmp.Diff(first.Threads, second.Threads); diff != "" {
		t.Fatalf("views differ between identical passes (-first +second):\n%s", diff)
	}
	if len(second.Reset) != 0 {
		t.Fatalf("identical configuration must not reset, got %v", second.Reset)
	}
}

func TestBuildCarriesResetToEveryThread(t *testing.T) {
	catalog := module.MustCatalog([]module.Descriptor{
		module.Describe("M1", module.Provides("X")),
		module.Describe("M2", module.Provides("X")),
	})
	prev := workflow.Configuration{Threads: []workflow.Thread{
		{Name: "Cognition", Assignments: []workflow.Assignment{{Representation: "X", Module: "M1"}}},
		{Name: "Motion"},
	}}
	next := prev.Clone()
	next.Threads[0].Assignments[0].Module = "M2"
	snap := build(t, catalog, prev, next)
	if diff := cmp.Diff([]string{"X"}, snap.Reset); diff != "" {
		t.Fatalf("reset mismatch (-want +got):\n%s", diff)
	}
	for _, v := range snap.Threads {
		if diff := cmp.Diff([]string{"X"}, v.Reset); diff != "" {
			t.Fatalf("thread %s reset mismatch (-want +got):\n%s", v.Thread, diff)
		}
	}
}

func TestSnapshotCopiesAreDetached(t *testing.T) {
	cfg := testConfiguration()
	snap := build(t, testCatalog(), workflow.Configuration{}, cfg)
	cfg.Threads[0].Name = "Mutated"
	if snap.Configuration.Threads[0].Name != "Upper" {
		t.Fatalf("snapshot shares configuration storage")
	}
	view, ok := snap.Thread("Cognition")
	if !ok {
		t.Fatalf("missing Cognition view")
	}
	view.Received["Upper"][0].Representation = "Mutated"
	view.Modules[0].Required = false
	again, _ := snap.Thread("Cognition")
	if again.Received["Upper"][0].Representation != "FieldBoundary" || !again.Required("BehaviorControl") {
		t.Fatalf("thread view shares storage with snapshot")
	}
	clone := snap.Clone()
	clone.Threads[1].Providers[0].Module = "Mutated"
	if snap.Threads[1].Providers[0].Module != "BehaviorControl" {
		t.Fatalf("clone shares storage with snapshot")
	}
	if _, ok := snap.Thread("Missing"); ok {
		t.Fatalf("unexpected view for unknown thread")
	}
}

func TestBuildValidatesInput(t *testing.T) {
	cfg := testConfiguration()
	if _, err := Build(Input{Configuration: cfg}); err == nil {
		t.Fatalf("expected error without catalog")
	}
	if _, err := Build(Input{Configuration: cfg, Catalog: testCatalog()}); err == nil {
		t.Fatalf("expected error without resolution")
	}
}
