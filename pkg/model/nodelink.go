package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// nodeLinkDoc is the serialized snapshot layout shared with other services.
// The "directed" flag and the nodes/links field names are fixed contract;
// the remaining fields carry snapshot identity and metrics.
type nodeLinkDoc struct {
	Directed    bool                    `json:"directed"`
	RepoID      string                  `json:"repoId,omitempty"`
	Branch      string                  `json:"branch,omitempty"`
	Version     int64                   `json:"version,omitempty"`
	SnapshotID  string                  `json:"snapshotId,omitempty"`
	BuiltAt     time.Time               `json:"builtAt,omitzero"`
	Approximate bool                    `json:"approximate"`
	Nodes       []nodeLinkNode          `json:"nodes"`
	Links       []nodeLinkEdge          `json:"links"`
	Metrics     map[string]*NodeMetrics `json:"metrics,omitempty"`
}

type nodeLinkNode struct {
	ID    string    `json:"id"`
	Kind  NodeKind  `json:"kind"`
	Attrs NodeAttrs `json:"attrs"`
}

type nodeLinkEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Weight float64  `json:"weight"`
}

// MarshalNodeLink serializes a graph in node-link form. Nodes and links are
// emitted in sorted order, so identical graphs serialize identically.
func MarshalNodeLink(g *Graph) ([]byte, error) {
	doc := nodeLinkDoc{
		Directed:    true,
		RepoID:      g.RepoID,
		Branch:      g.Branch,
		Version:     g.Version,
		SnapshotID:  g.SnapshotID,
		BuiltAt:     g.BuiltAt,
		Approximate: g.Approximate,
		Nodes:       make([]nodeLinkNode, 0, len(g.Nodes)),
		Links:       make([]nodeLinkEdge, 0, len(g.Edges)),
		Metrics:     g.Metrics,
	}
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		doc.Nodes = append(doc.Nodes, nodeLinkNode{ID: n.ID, Kind: n.Kind, Attrs: n.Attrs})
	}
	for _, e := range g.SortedEdges() {
		doc.Links = append(doc.Links, nodeLinkEdge{Source: e.Source, Target: e.Target, Kind: e.Kind, Weight: e.Weight})
	}
	return json.Marshal(doc)
}

// UnmarshalNodeLink reconstructs a graph from node-link form.
func UnmarshalNodeLink(data []byte) (*Graph, error) {
	var doc nodeLinkDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing node-link document: %w", err)
	}
	if !doc.Directed {
		return nil, fmt.Errorf("node-link document is not directed")
	}

	g := NewGraph()
	g.RepoID = doc.RepoID
	g.Branch = doc.Branch
	g.Version = doc.Version
	g.SnapshotID = doc.SnapshotID
	g.BuiltAt = doc.BuiltAt
	g.Approximate = doc.Approximate
	if doc.Metrics != nil {
		g.Metrics = doc.Metrics
	}

	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node-link document contains a node without id")
		}
		g.AddNode(&Node{ID: n.ID, Kind: n.Kind, Attrs: n.Attrs})
	}
	for _, l := range doc.Links {
		if !g.HasNode(l.Source) || !g.HasNode(l.Target) {
			return nil, fmt.Errorf("link %s -> %s references unknown node", l.Source, l.Target)
		}
		g.AddEdge(l.Source, l.Target, l.Kind, l.Weight)
	}
	return g, nil
}
