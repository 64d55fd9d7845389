package model

import "time"

// NodeKind represents the structural role of a graph node
type NodeKind string

const (
	NodeKindFile               NodeKind = "file"
	NodeKindModule             NodeKind = "module"
	NodeKindClass              NodeKind = "class"
	NodeKindFunction           NodeKind = "function"
	NodeKindExternalUnresolved NodeKind = "external_unresolved"
)

// EdgeKind represents the type of dependency between two nodes
type EdgeKind string

const (
	EdgeKindImports  EdgeKind = "imports"
	EdgeKindCalls    EdgeKind = "calls"
	EdgeKindInherits EdgeKind = "inherits"
)

// MaxExtraAttrs bounds the open extension map per node. Extras beyond the
// cap are dropped during graph construction.
const MaxExtraAttrs = 16

// NodeAttrs holds the typed attribute set shared by all node kinds, plus a
// bounded extension map for language-specific extras.
type NodeAttrs struct {
	Language     string            `json:"language,omitempty"`
	ParentFile   string            `json:"parentFile,omitempty"` // owning file for class/function nodes
	SizeBytes    int64             `json:"sizeBytes,omitempty"`
	LastChanged  time.Time         `json:"lastChanged,omitzero"`
	TestCoverage *float64          `json:"testCoverage,omitempty"` // fraction in [0,1], nil when unknown
	Extra        map[string]string `json:"extra,omitempty"`
}

// Node represents a vertex in the dependency graph. The ID is a stable
// qualified identifier: a file path, a dotted module name, or
// "<file>::<symbol>" for classes and functions.
type Node struct {
	ID    string    `json:"id"`
	Kind  NodeKind  `json:"kind"`
	Attrs NodeAttrs `json:"attrs"`
}

// Edge represents a typed directed dependency. At most one edge exists per
// (source, target, kind) tuple; duplicate additions merge by summing weights.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Weight float64  `json:"weight"`
}

// EdgeKey identifies an edge within a graph.
type EdgeKey struct {
	Source string
	Target string
	Kind   EdgeKind
}

// NodeMetrics holds the structural metrics computed for a node after the
// graph's edge set is fixed.
type NodeMetrics struct {
	InDegree         int     `json:"inDegree"`
	OutDegree        int     `json:"outDegree"`
	DegreeCentrality float64 `json:"degreeCentrality"`
	Betweenness      float64 `json:"betweenness"`
	Closeness        float64 `json:"closeness"`
}

// CentralNode pairs a node id with its degree centrality, used for the
// top-central-nodes list in graph statistics.
type CentralNode struct {
	ID         string  `json:"id"`
	Centrality float64 `json:"centrality"`
}

// GraphStats summarizes a graph snapshot for external consumers.
type GraphStats struct {
	NodeCount       int           `json:"nodeCount"`
	EdgeCount       int           `json:"edgeCount"`
	Density         float64       `json:"density"`
	IsDAG           bool          `json:"isDAG"`
	ComponentCount  int           `json:"componentCount"`
	TopCentralNodes []CentralNode `json:"topCentralNodes"`
}
