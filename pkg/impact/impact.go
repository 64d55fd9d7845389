package impact

import (
	"context"
	"fmt"
	"sort"

	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/store"
)

// DefaultMaxDepth bounds reverse traversal on dense cyclic graphs.
const DefaultMaxDepth = 20

// ErrAllUnknown is returned when none of the changed ids exist in the
// graph. It matches store.ErrNotFound so transport layers can map it to a
// not-found condition.
var ErrAllUnknown = fmt.Errorf("no changed ids present in graph: %w", store.ErrNotFound)

// SeedStatus tags each requested changed id as known or unknown.
type SeedStatus struct {
	ID    string `json:"id"`
	Known bool   `json:"known"`
}

// Result is the outcome of an impact computation. Impacted maps node id to
// minimum hop distance from the nearest changed node (0 = the changed node
// itself). Truncated reports that a depth or deadline bound cut the
// traversal short; the result is correct but incomplete.
type Result struct {
	Changed   []SeedStatus   `json:"changed"`
	Impacted  map[string]int `json:"impacted"`
	Truncated bool           `json:"truncated"`
}

// Compute finds all nodes that transitively depend on the changed set by
// multi-source BFS over reverse edges. Unknown ids are tagged and skipped;
// only if every id is unknown does the call fail. A deadline on ctx returns
// the partial result with Truncated=true instead of an error.
func Compute(ctx context.Context, g *model.Graph, changedIDs []string, maxDepth int) (*Result, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	result := &Result{
		Changed:  make([]SeedStatus, 0, len(changedIDs)),
		Impacted: make(map[string]int),
	}

	var seeds []string
	for _, id := range changedIDs {
		known := g.HasNode(id)
		result.Changed = append(result.Changed, SeedStatus{ID: id, Known: known})
		if known {
			seeds = append(seeds, id)
		}
	}
	if len(seeds) == 0 {
		return nil, ErrAllUnknown
	}
	sort.Strings(seeds)

	reverse := g.Reverse()

	type queueItem struct {
		id    string
		depth int
	}
	queue := make([]queueItem, 0, len(seeds))
	for _, id := range seeds {
		result.Impacted[id] = 0
		queue = append(queue, queueItem{id: id, depth: 0})
	}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			result.Truncated = true
			return result, nil
		default:
		}

		item := queue[0]
		queue = queue[1:]

		for _, dependent := range reverse[item.id] {
			if _, visited := result.Impacted[dependent]; visited {
				continue
			}
			if item.depth >= maxDepth {
				result.Truncated = true
				continue
			}
			result.Impacted[dependent] = item.depth + 1
			queue = append(queue, queueItem{id: dependent, depth: item.depth + 1})
		}
	}

	return result, nil
}
