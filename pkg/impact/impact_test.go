package impact

import (
	"context"
	"errors"
	"testing"

	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/store"
)

// chain builds a -> b -> c -> ... where an edge means "depends on", so
// impact flows right to left.
func chain(ids ...string) *model.Graph {
	g := model.NewGraph()
	for _, id := range ids {
		g.AddNode(&model.Node{ID: id, Kind: model.NodeKindFile})
	}
	for i := 0; i+1 < len(ids); i++ {
		g.AddEdge(ids[i], ids[i+1], model.EdgeKindImports, 1)
	}
	return g
}

func TestComputeChainDistances(t *testing.T) {
	g := chain("a", "b", "c", "d")

	res, err := Compute(context.Background(), g, []string{"d"}, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	want := map[string]int{"d": 0, "c": 1, "b": 2, "a": 3}
	if len(res.Impacted) != len(want) {
		t.Fatalf("impacted = %v, want %v", res.Impacted, want)
	}
	for id, dist := range want {
		if res.Impacted[id] != dist {
			t.Errorf("distance(%s) = %d, want %d", id, res.Impacted[id], dist)
		}
	}
	if res.Truncated {
		t.Error("unexpected truncation")
	}
}

func TestComputeCycleTerminates(t *testing.T) {
	g := chain("a", "b", "c")
	g.AddEdge("c", "a", model.EdgeKindImports, 1)

	res, err := Compute(context.Background(), g, []string{"a"}, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	want := map[string]int{"a": 0, "c": 1, "b": 2}
	for id, dist := range want {
		if res.Impacted[id] != dist {
			t.Errorf("distance(%s) = %d, want %d", id, res.Impacted[id], dist)
		}
	}
}

func TestComputeMultiSourceMinimum(t *testing.T) {
	g := chain("a", "b", "c", "d")

	res, err := Compute(context.Background(), g, []string{"c", "d"}, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// Each node's distance is the minimum over the seed set.
	want := map[string]int{"c": 0, "d": 0, "b": 1, "a": 2}
	for id, dist := range want {
		if res.Impacted[id] != dist {
			t.Errorf("distance(%s) = %d, want %d", id, res.Impacted[id], dist)
		}
	}
}

func TestComputeSeedSetUnion(t *testing.T) {
	// Two branches converging on a shared dependency: x -> a -> s,
	// y -> b -> s. The impacted set of a combined seed set must equal the
	// union of the per-seed impacted sets.
	g := chain("x", "a", "s")
	for _, id := range []string{"y", "b"} {
		g.AddNode(&model.Node{ID: id, Kind: model.NodeKindFile})
	}
	g.AddEdge("y", "b", model.EdgeKindImports, 1)
	g.AddEdge("b", "s", model.EdgeKindImports, 1)

	impactedSet := func(seeds ...string) map[string]bool {
		t.Helper()
		res, err := Compute(context.Background(), g, seeds, 0)
		if err != nil {
			t.Fatalf("compute(%v): %v", seeds, err)
		}
		set := make(map[string]bool, len(res.Impacted))
		for id := range res.Impacted {
			set[id] = true
		}
		return set
	}

	union := impactedSet("a")
	for id := range impactedSet("b") {
		union[id] = true
	}
	combined := impactedSet("a", "b")

	if len(combined) != len(union) {
		t.Fatalf("combined = %v, union = %v", combined, union)
	}
	for id := range union {
		if !combined[id] {
			t.Errorf("union member %s missing from combined seed result", id)
		}
	}
}

func TestComputeUnknownIDsTagged(t *testing.T) {
	g := chain("a", "b")

	res, err := Compute(context.Background(), g, []string{"b", "ghost"}, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	known := map[string]bool{}
	for _, seed := range res.Changed {
		known[seed.ID] = seed.Known
	}
	if !known["b"] || known["ghost"] {
		t.Errorf("seed tagging wrong: %v", res.Changed)
	}
	if _, ok := res.Impacted["ghost"]; ok {
		t.Error("unknown id must not appear in impacted set")
	}
}

func TestComputeAllUnknownFails(t *testing.T) {
	g := chain("a", "b")

	_, err := Compute(context.Background(), g, []string{"x", "y"}, 0)
	if !errors.Is(err, ErrAllUnknown) {
		t.Fatalf("expected ErrAllUnknown, got %v", err)
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Error("ErrAllUnknown should match the not-found condition")
	}
}

func TestComputeMaxDepthTruncates(t *testing.T) {
	g := chain("a", "b", "c", "d")

	res, err := Compute(context.Background(), g, []string{"d"}, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if !res.Truncated {
		t.Error("expected truncation at depth bound")
	}
	if _, ok := res.Impacted["b"]; ok {
		t.Errorf("node beyond maxDepth included: %v", res.Impacted)
	}
	if res.Impacted["c"] != 1 {
		t.Errorf("distance(c) = %d, want 1", res.Impacted["c"])
	}
}

func TestComputeCanceledContextReturnsPartial(t *testing.T) {
	g := chain("a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Compute(ctx, g, []string{"c"}, 0)
	if err != nil {
		t.Fatalf("canceled context must not error: %v", err)
	}
	if !res.Truncated {
		t.Error("expected truncated partial result")
	}
}

func TestFindPathsChain(t *testing.T) {
	g := chain("a", "b", "c", "d")

	res, err := FindPaths(context.Background(), g, "a", "d", 0, 0)
	if err != nil {
		t.Fatalf("findPaths: %v", err)
	}

	if len(res.Paths) != 1 {
		t.Fatalf("paths = %v, want exactly one", res.Paths)
	}
	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if res.Paths[0][i] != id {
			t.Fatalf("path = %v, want %v", res.Paths[0], want)
		}
	}
	if res.Truncated {
		t.Error("unexpected truncation")
	}
}

func TestFindPathsDiamondShortestFirst(t *testing.T) {
	g := chain("a", "d")
	g.AddNode(&model.Node{ID: "b", Kind: model.NodeKindFile})
	g.AddNode(&model.Node{ID: "c", Kind: model.NodeKindFile})
	g.AddEdge("a", "b", model.EdgeKindImports, 1)
	g.AddEdge("b", "c", model.EdgeKindImports, 1)
	g.AddEdge("c", "d", model.EdgeKindImports, 1)

	res, err := FindPaths(context.Background(), g, "a", "d", 0, 0)
	if err != nil {
		t.Fatalf("findPaths: %v", err)
	}

	if len(res.Paths) != 2 {
		t.Fatalf("paths = %v, want 2", res.Paths)
	}
	if len(res.Paths[0]) != 2 || len(res.Paths[1]) != 4 {
		t.Errorf("paths not ordered shortest-first: %v", res.Paths)
	}
}

func TestFindPathsMaxPathsTruncates(t *testing.T) {
	g := model.NewGraph()
	for _, id := range []string{"s", "m1", "m2", "m3", "t"} {
		g.AddNode(&model.Node{ID: id, Kind: model.NodeKindFile})
	}
	for _, mid := range []string{"m1", "m2", "m3"} {
		g.AddEdge("s", mid, model.EdgeKindImports, 1)
		g.AddEdge(mid, "t", model.EdgeKindImports, 1)
	}

	res, err := FindPaths(context.Background(), g, "s", "t", 2, 0)
	if err != nil {
		t.Fatalf("findPaths: %v", err)
	}

	if len(res.Paths) != 2 {
		t.Errorf("paths = %d, want 2", len(res.Paths))
	}
	if !res.Truncated {
		t.Error("expected truncation at maxPaths")
	}
}

func TestFindPathsMaxLengthExcludesLongPaths(t *testing.T) {
	g := chain("a", "b", "c", "d")

	res, err := FindPaths(context.Background(), g, "a", "d", 0, 2)
	if err != nil {
		t.Fatalf("findPaths: %v", err)
	}

	if len(res.Paths) != 0 {
		t.Errorf("3-edge path should exceed the 2-edge cap: %v", res.Paths)
	}
	if !res.Truncated {
		t.Error("expected truncation when the length cap cut the search")
	}
}

func TestFindPathsSourceEqualsTarget(t *testing.T) {
	g := chain("a", "b")

	res, err := FindPaths(context.Background(), g, "a", "a", 0, 0)
	if err != nil {
		t.Fatalf("findPaths: %v", err)
	}
	if len(res.Paths) != 1 || len(res.Paths[0]) != 1 || res.Paths[0][0] != "a" {
		t.Errorf("paths = %v, want [[a]]", res.Paths)
	}
}

func TestFindPathsUnknownEndpoint(t *testing.T) {
	g := chain("a", "b")

	if _, err := FindPaths(context.Background(), g, "ghost", "b", 0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not-found for unknown source, got %v", err)
	}
	if _, err := FindPaths(context.Background(), g, "a", "ghost", 0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not-found for unknown target, got %v", err)
	}
}

func TestFindPathsNoPath(t *testing.T) {
	g := chain("a", "b")
	g.AddNode(&model.Node{ID: "z", Kind: model.NodeKindFile})

	res, err := FindPaths(context.Background(), g, "a", "z", 0, 0)
	if err != nil {
		t.Fatalf("findPaths: %v", err)
	}
	if len(res.Paths) != 0 || res.Truncated {
		t.Errorf("expected empty untruncated result, got %+v", res)
	}
}
