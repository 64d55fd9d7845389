package model

import (
	"bytes"
	"testing"
)

func TestAddEdgeMergesWeights(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "a", Kind: NodeKindFile})
	g.AddNode(&Node{ID: "b", Kind: NodeKindFile})

	g.AddEdge("a", "b", EdgeKindImports, 0) // unweighted counts as 1
	g.AddEdge("a", "b", EdgeKindImports, 2.5)
	g.AddEdge("a", "b", EdgeKindCalls, 1) // different kind is a distinct edge

	if g.EdgeCount() != 2 {
		t.Fatalf("edges = %d, want 2", g.EdgeCount())
	}
	e := g.Edges[EdgeKey{Source: "a", Target: "b", Kind: EdgeKindImports}]
	if e == nil || e.Weight != 3.5 {
		t.Errorf("merged weight = %+v, want 3.5", e)
	}
}

func TestAdjacencySortedAndDeduplicated(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(&Node{ID: id, Kind: NodeKindFile})
	}
	g.AddEdge("a", "c", EdgeKindImports, 1)
	g.AddEdge("a", "b", EdgeKindImports, 1)
	g.AddEdge("a", "b", EdgeKindCalls, 1) // same pair, different kind
	g.AddEdge("a", "a", EdgeKindCalls, 1) // self-loop

	forward := g.Forward()
	want := []string{"a", "b", "c"}
	if len(forward["a"]) != len(want) {
		t.Fatalf("forward[a] = %v, want %v", forward["a"], want)
	}
	for i, id := range want {
		if forward["a"][i] != id {
			t.Fatalf("forward[a] = %v, want %v", forward["a"], want)
		}
	}

	noLoops := g.ForwardNoLoops()
	if len(noLoops["a"]) != 2 {
		t.Errorf("forwardNoLoops[a] = %v, want [b c]", noLoops["a"])
	}

	reverse := g.Reverse()
	if len(reverse["b"]) != 1 || reverse["b"][0] != "a" {
		t.Errorf("reverse[b] = %v, want [a]", reverse["b"])
	}
}

func TestNodeLinkRoundTrip(t *testing.T) {
	g := NewGraph()
	cov := 0.8
	g.AddNode(&Node{ID: "a.py", Kind: NodeKindFile, Attrs: NodeAttrs{
		Language:     "python",
		SizeBytes:    120,
		TestCoverage: &cov,
		Extra:        map[string]string{"owner": "core"},
	}})
	g.AddNode(&Node{ID: "a.py::run", Kind: NodeKindFunction, Attrs: NodeAttrs{ParentFile: "a.py"}})
	g.AddEdge("a.py::run", "a.py", EdgeKindCalls, 2)
	g.Metrics["a.py"] = &NodeMetrics{InDegree: 1, DegreeCentrality: 1}
	g.RepoID, g.Branch, g.Version = "repo", "main", 3

	data, err := MarshalNodeLink(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	back, err := UnmarshalNodeLink(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.RepoID != "repo" || back.Branch != "main" || back.Version != 3 {
		t.Errorf("identity lost: %s/%s v%d", back.RepoID, back.Branch, back.Version)
	}
	if back.NodeCount() != 2 || back.EdgeCount() != 1 {
		t.Errorf("counts = (%d,%d), want (2,1)", back.NodeCount(), back.EdgeCount())
	}
	n := back.Nodes["a.py"]
	if n == nil || n.Kind != NodeKindFile || n.Attrs.Language != "python" {
		t.Errorf("node attrs lost: %+v", n)
	}
	if n.Attrs.TestCoverage == nil || *n.Attrs.TestCoverage != 0.8 {
		t.Errorf("coverage lost: %+v", n.Attrs)
	}
	e := back.Edges[EdgeKey{Source: "a.py::run", Target: "a.py", Kind: EdgeKindCalls}]
	if e == nil || e.Weight != 2 {
		t.Errorf("edge lost: %+v", e)
	}
	if back.Metrics["a.py"] == nil || back.Metrics["a.py"].InDegree != 1 {
		t.Errorf("metrics lost: %+v", back.Metrics["a.py"])
	}
}

func TestNodeLinkDeterministic(t *testing.T) {
	build := func(order []string) *Graph {
		g := NewGraph()
		for _, id := range order {
			g.AddNode(&Node{ID: id, Kind: NodeKindFile})
		}
		g.AddEdge("b", "a", EdgeKindImports, 1)
		g.AddEdge("a", "c", EdgeKindImports, 1)
		return g
	}

	d1, err := MarshalNodeLink(build([]string{"a", "b", "c"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	d2, err := MarshalNodeLink(build([]string{"c", "b", "a"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(d1, d2) {
		t.Errorf("serialization depends on insertion order:\n%s\n%s", d1, d2)
	}
}

func TestUnmarshalNodeLinkRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"undirected", `{"directed": false, "nodes": [], "links": []}`},
		{"empty node id", `{"directed": true, "nodes": [{"id": ""}], "links": []}`},
		{"unknown endpoint", `{"directed": true, "nodes": [{"id": "a"}], "links": [{"source": "a", "target": "ghost", "kind": "imports"}]}`},
		{"malformed", `{"directed": tru`},
	}
	for _, tt := range tests {
		if _, err := UnmarshalNodeLink([]byte(tt.doc)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
