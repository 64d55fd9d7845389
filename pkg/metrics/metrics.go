package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/model"
)

// Options configures structural metric computation.
type Options struct {
	// ExactThreshold is the node count above which betweenness/closeness are
	// approximated by sampling sources instead of computed exactly.
	ExactThreshold int
	// SampleSources is the number of BFS sources used when approximating.
	SampleSources int
	// Workers bounds the worker pool for per-source shortest-path passes.
	Workers int
	// Deadline is the wall-clock budget for the path-based metrics. On
	// expiry the computation degrades to degree-only metrics.
	Deadline time.Duration
}

// DefaultOptions returns the default metric computation options.
func DefaultOptions() Options {
	return Options{
		ExactThreshold: 5000,
		SampleSources:  256,
		Workers:        runtime.GOMAXPROCS(0),
		Deadline:       30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ExactThreshold <= 0 {
		o.ExactThreshold = d.ExactThreshold
	}
	if o.SampleSources <= 0 {
		o.SampleSources = d.SampleSources
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Deadline <= 0 {
		o.Deadline = d.Deadline
	}
	return o
}

// Compute calculates per-node structural metrics for the graph: in/out
// degree, degree centrality, betweenness, and closeness. The returned bool
// reports whether any path-based metric is approximate (sampled sources or
// deadline fallback). Degrees are always exact.
//
// Self-loops count toward in/out degree but are excluded from all
// centrality values by convention.
func Compute(ctx context.Context, g *model.Graph, opts Options) (map[string]*model.NodeMetrics, bool) {
	opts = opts.withDefaults()

	ids := g.NodeIDs()
	n := len(ids)
	result := make(map[string]*model.NodeMetrics, n)
	for _, id := range ids {
		result[id] = &model.NodeMetrics{}
	}

	forward := g.Forward()
	reverse := g.Reverse()
	for _, id := range ids {
		result[id].OutDegree = len(forward[id])
		result[id].InDegree = len(reverse[id])
	}

	adj := g.ForwardNoLoops()
	if n > 1 {
		for _, id := range ids {
			out := len(adj[id])
			in := inDegreeNoLoops(reverse, id)
			result[id].DegreeCentrality = float64(in+out) / float64(n-1)
		}
	}

	if n < 2 {
		return result, false
	}

	sources := ids
	approximate := false
	if n > opts.ExactThreshold {
		sources = sampleSources(ids, opts.SampleSources)
		approximate = true
		logging.Debug("approximating centrality by source sampling",
			"nodes", n, "sources", len(sources))
	}

	betweenness, closeness, ok := shortestPathMetrics(ctx, ids, adj, sources, opts)
	if !ok {
		// Deadline hit: keep degrees, drop path-based metrics.
		logging.Warn("centrality computation exceeded deadline, falling back to degree-only metrics",
			"nodes", n, "deadline", opts.Deadline)
		return result, true
	}

	scale := float64(n) / float64(len(sources))
	norm := 1.0
	if n > 2 {
		norm = 1.0 / (float64(n-1) * float64(n-2))
	}
	for _, id := range ids {
		result[id].Betweenness = betweenness[id] * scale * norm
		result[id].Closeness = closeness[id]
	}

	return result, approximate
}

func inDegreeNoLoops(reverse map[string][]string, id string) int {
	in := 0
	for _, s := range reverse[id] {
		if s != id {
			in++
		}
	}
	return in
}

// sampleSources picks a deterministic subset of sources: sorted ids at a
// fixed stride, so identical graphs always sample the same nodes.
func sampleSources(ids []string, count int) []string {
	if count >= len(ids) {
		return ids
	}
	sampled := make([]string, 0, count)
	stride := float64(len(ids)) / float64(count)
	for i := 0; i < count; i++ {
		sampled = append(sampled, ids[int(float64(i)*stride)])
	}
	return sampled
}

// sourceResult holds the per-source accumulation produced by one worker pass.
type sourceResult struct {
	betweenness map[string]float64
	distSum     map[string]int // sum of distances from sources reaching each node
	reached     map[string]int // how many sources reached each node
}

// shortestPathMetrics runs Brandes-style single-source shortest path
// accumulation from each source under a bounded worker pool and a deadline.
// Returns ok=false if the deadline expired before all sources completed.
func shortestPathMetrics(ctx context.Context, ids []string, adj map[string][]string, sources []string, opts Options) (map[string]float64, map[string]float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	work := make(chan string)
	results := make(chan sourceResult, opts.Workers)

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range work {
				results <- brandesFromSource(s, adj)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, s := range sources {
			select {
			case work <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	betweenness := make(map[string]float64, len(ids))
	distSum := make(map[string]int, len(ids))
	reached := make(map[string]int, len(ids))
	completed := 0
	for r := range results {
		for id, v := range r.betweenness {
			betweenness[id] += v
		}
		for id, d := range r.distSum {
			distSum[id] += d
			reached[id] += r.reached[id]
		}
		completed++
	}

	if completed < len(sources) {
		return nil, nil, false
	}

	// Closeness from incoming distances, with the reachable-fraction scaling
	// so disconnected graphs are not rewarded.
	n := len(ids)
	closeness := make(map[string]float64, n)
	for _, id := range ids {
		if distSum[id] > 0 {
			r := float64(reached[id])
			closeness[id] = (r / float64(distSum[id])) * (r / float64(n-1))
		}
	}
	return betweenness, closeness, true
}

// brandesFromSource performs one single-source pass: BFS shortest-path
// counting followed by reverse dependency accumulation.
func brandesFromSource(s string, adj map[string][]string) sourceResult {
	sigma := map[string]float64{s: 1}
	dist := map[string]int{s: 0}
	preds := make(map[string][]string)
	var order []string

	queue := []string{s}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for _, w := range adj[v] {
			if _, seen := dist[w]; !seen {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
				preds[w] = append(preds[w], v)
			}
		}
	}

	res := sourceResult{
		betweenness: make(map[string]float64),
		distSum:     make(map[string]int, len(order)),
		reached:     make(map[string]int, len(order)),
	}
	for v, d := range dist {
		if v != s {
			res.distSum[v] = d
			res.reached[v] = 1
		}
	}

	delta := make(map[string]float64, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		w := order[i]
		for _, v := range preds[w] {
			delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
		}
		if w != s {
			res.betweenness[w] += delta[w]
		}
	}
	return res
}
