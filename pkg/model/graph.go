package model

import (
	"sort"
	"time"
)

// Graph is a typed directed dependency graph identified by
// (RepoID, Branch, Version). A graph is mutable while it is being built;
// once published through the store it is an immutable snapshot and must not
// be modified by readers.
type Graph struct {
	RepoID      string    `json:"repoId,omitempty"`
	Branch      string    `json:"branch,omitempty"`
	Version     int64     `json:"version,omitempty"`
	SnapshotID  string    `json:"snapshotId,omitempty"`
	BuiltAt     time.Time `json:"builtAt,omitzero"`
	Approximate bool      `json:"approximate"`

	Nodes   map[string]*Node        `json:"nodes"`
	Edges   map[EdgeKey]*Edge       `json:"-"`
	Metrics map[string]*NodeMetrics `json:"metrics,omitempty"`
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:   make(map[string]*Node),
		Edges:   make(map[EdgeKey]*Edge),
		Metrics: make(map[string]*NodeMetrics),
	}
}

// AddNode adds a node to the graph. An existing node with the same ID is
// replaced.
func (g *Graph) AddNode(node *Node) {
	g.Nodes[node.ID] = node
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// AddEdge adds a typed edge. Duplicate (source, target, kind) tuples merge
// by summing weights, so the edge set stays unique per tuple. A weight of 0
// counts as 1 (unweighted reference).
func (g *Graph) AddEdge(source, target string, kind EdgeKind, weight float64) {
	if weight == 0 {
		weight = 1
	}
	key := EdgeKey{Source: source, Target: target, Kind: kind}
	if existing, ok := g.Edges[key]; ok {
		existing.Weight += weight
		return
	}
	g.Edges[key] = &Edge{Source: source, Target: target, Kind: kind, Weight: weight}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of distinct (source, target, kind) edges.
func (g *Graph) EdgeCount() int {
	return len(g.Edges)
}

// NodeIDs returns all node ids in sorted order for deterministic iteration.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedEdges returns all edges ordered by (source, target, kind) for
// deterministic iteration and serialization.
func (g *Graph) SortedEdges() []*Edge {
	edges := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})
	return edges
}

// Forward builds a forward adjacency list (source -> targets) across all
// edge kinds. Neighbor lists are sorted and deduplicated.
func (g *Graph) Forward() map[string][]string {
	return g.adjacency(false, true)
}

// Reverse builds a reverse adjacency list (target -> sources) across all
// edge kinds, the direction impact propagation traverses.
func (g *Graph) Reverse() map[string][]string {
	return g.adjacency(true, true)
}

// ForwardNoLoops is Forward with self-loops removed. Centrality computation
// excludes self-loops by convention.
func (g *Graph) ForwardNoLoops() map[string][]string {
	return g.adjacency(false, false)
}

func (g *Graph) adjacency(reverse, includeLoops bool) map[string][]string {
	seen := make(map[string]map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		if !includeLoops && e.Source == e.Target {
			continue
		}
		from, to := e.Source, e.Target
		if reverse {
			from, to = to, from
		}
		if seen[from] == nil {
			seen[from] = make(map[string]bool)
		}
		seen[from][to] = true
	}
	adj := make(map[string][]string, len(seen))
	for from, tos := range seen {
		list := make([]string, 0, len(tos))
		for to := range tos {
			list = append(list, to)
		}
		sort.Strings(list)
		adj[from] = list
	}
	return adj
}
