package impact

import (
	"context"
	"fmt"
	"sort"

	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/store"
)

// Path enumeration caps. Exhaustive simple-path enumeration is exponential
// in dense graphs, so FindPaths is explicitly best-effort.
const (
	DefaultMaxPaths  = 10
	DefaultMaxLength = 12 // edges per path
)

// PathResult holds the enumerated simple paths from source to target,
// ordered shortest-first and by discovery order within equal lengths.
// Truncated reports that a cap or deadline cut enumeration short, so
// further paths may exist.
type PathResult struct {
	Source    string     `json:"source"`
	Target    string     `json:"target"`
	Paths     [][]string `json:"paths"`
	Truncated bool       `json:"truncated"`
}

// FindPaths enumerates simple (non-repeating) paths from source to target
// over forward edges using an iterative depth-limited DFS. The search stops
// after maxPaths paths or when maxLength edges would be exceeded; a ctx
// deadline returns the paths found so far with Truncated=true.
func FindPaths(ctx context.Context, g *model.Graph, source, target string, maxPaths, maxLength int) (*PathResult, error) {
	if !g.HasNode(source) {
		return nil, fmt.Errorf("source %q: %w", source, store.ErrNotFound)
	}
	if !g.HasNode(target) {
		return nil, fmt.Errorf("target %q: %w", target, store.ErrNotFound)
	}
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	result := &PathResult{Source: source, Target: target, Paths: [][]string{}}

	forward := g.Forward()

	// Explicit-stack DFS: each frame tracks how far through its neighbor
	// list it has advanced, so backtracking never relies on call-stack
	// recursion.
	type frame struct {
		id   string
		next int
	}
	stack := []frame{{id: source}}
	onPath := map[string]bool{source: true}
	path := []string{source}

	if source == target {
		result.Paths = append(result.Paths, []string{source})
		return result, nil
	}

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			result.Truncated = true
			sortPaths(result.Paths)
			return result, nil
		default:
		}

		top := &stack[len(stack)-1]
		neighbors := forward[top.id]

		if top.next >= len(neighbors) || len(path)-1 >= maxLength {
			// Exhausted or at the length cap: backtrack.
			if len(path)-1 >= maxLength && top.next < len(neighbors) {
				result.Truncated = true
			}
			onPath[top.id] = false
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
			continue
		}

		next := neighbors[top.next]
		top.next++

		if onPath[next] {
			continue // simple paths only
		}

		if next == target {
			found := make([]string, len(path)+1)
			copy(found, path)
			found[len(path)] = target
			result.Paths = append(result.Paths, found)
			if len(result.Paths) >= maxPaths {
				result.Truncated = true
				sortPaths(result.Paths)
				return result, nil
			}
			continue
		}

		onPath[next] = true
		path = append(path, next)
		stack = append(stack, frame{id: next})
	}

	sortPaths(result.Paths)
	return result, nil
}

// sortPaths orders paths shortest-first, preserving discovery order among
// equal lengths.
func sortPaths(paths [][]string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return len(paths[i]) < len(paths[j])
	})
}
