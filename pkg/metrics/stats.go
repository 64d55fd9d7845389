package metrics

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/changelens/impact-engine/pkg/model"
)

// mirror maps the snapshot's string ids onto gonum graphs so the topology
// checks can run over them.
type mirror struct {
	directed   *simple.DirectedGraph
	undirected *simple.UndirectedGraph
	ids        map[string]int64
}

func newMirror(g *model.Graph) *mirror {
	m := &mirror{
		directed:   simple.NewDirectedGraph(),
		undirected: simple.NewUndirectedGraph(),
		ids:        make(map[string]int64, g.NodeCount()),
	}
	var next int64
	for _, id := range g.NodeIDs() {
		m.ids[id] = next
		m.directed.AddNode(simple.Node(next))
		m.undirected.AddNode(simple.Node(next))
		next++
	}
	for _, e := range g.SortedEdges() {
		if e.Source == e.Target {
			continue // simple graphs reject self-loops; they don't affect DAG/component checks
		}
		from, to := m.ids[e.Source], m.ids[e.Target]
		if !m.directed.HasEdgeFromTo(from, to) {
			m.directed.SetEdge(m.directed.NewEdge(simple.Node(from), simple.Node(to)))
		}
		if !m.undirected.HasEdgeBetween(from, to) {
			m.undirected.SetEdge(m.undirected.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}
	return m
}

// Stats computes snapshot-level statistics: counts, density, acyclicity,
// weakly connected component count, and the most central nodes by degree
// centrality.
func Stats(g *model.Graph, topN int) model.GraphStats {
	if topN <= 0 {
		topN = 5
	}

	n := g.NodeCount()
	stats := model.GraphStats{
		NodeCount:       n,
		EdgeCount:       g.EdgeCount(),
		TopCentralNodes: []model.CentralNode{},
	}

	// Density over distinct ordered node pairs, ignoring edge kind.
	pairs := make(map[[2]string]bool, len(g.Edges))
	selfLoops := false
	for _, e := range g.Edges {
		if e.Source == e.Target {
			selfLoops = true
			continue
		}
		pairs[[2]string{e.Source, e.Target}] = true
	}
	if n > 1 {
		stats.Density = float64(len(pairs)) / float64(n*(n-1))
	}

	if n > 0 {
		m := newMirror(g)
		_, err := topo.Sort(m.directed)
		stats.IsDAG = err == nil && !selfLoops
		stats.ComponentCount = len(topo.ConnectedComponents(m.undirected))
	}

	central := make([]model.CentralNode, 0, n)
	for _, id := range g.NodeIDs() {
		nm := g.Metrics[id]
		if nm == nil {
			continue
		}
		central = append(central, model.CentralNode{ID: id, Centrality: nm.DegreeCentrality})
	}
	sort.SliceStable(central, func(i, j int) bool {
		if central[i].Centrality != central[j].Centrality {
			return central[i].Centrality > central[j].Centrality
		}
		return central[i].ID < central[j].ID
	})
	if len(central) > topN {
		central = central[:topN]
	}
	stats.TopCentralNodes = central

	return stats
}
