package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/changelens/impact-engine/pkg/builder"
	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/pubsub"
)

// GraphStore is the slice of the store the runner needs to publish
// snapshots.
type GraphStore interface {
	Put(repoID, branch string, g *model.Graph) (int64, error)
}

// Runner orchestrates build, publish, and progress notification for a
// graph key. Concurrent runs within a process are serialized.
type Runner struct {
	store     GraphStore
	publisher pubsub.Publisher
	buildOpts builder.Options
	mu        sync.Mutex // Prevent concurrent build runs
}

// RunResult reports the outcome of one build-and-publish cycle.
type RunResult struct {
	Graph    *model.Graph
	Rejected []builder.Rejected
}

// New creates a runner. The publisher may be nil in one-shot mode.
func New(store GraphStore, publisher pubsub.Publisher, buildOpts builder.Options) *Runner {
	return &Runner{
		store:     store,
		publisher: publisher,
		buildOpts: buildOpts,
	}
}

// Run builds a graph from the given fact records and publishes it as the
// next snapshot for (repoID, branch), streaming build progress on the
// build_status topic and announcing the committed snapshot on
// graph_published.
func (r *Runner) Run(ctx context.Context, repoID, branch string, records []model.FileFacts) (*RunResult, error) {
	// Lock to prevent concurrent builds
	r.mu.Lock()
	defer r.mu.Unlock()

	logging.InfoContext(ctx, "starting graph build",
		"repo", repoID, "branch", branch, "records", len(records))

	opts := r.buildOpts
	opts.Progress = func(state, message string, step, total int) {
		r.publishStatus(repoID, branch, state, message, step, total)
	}

	g, rejected := builder.Build(ctx, records, opts)

	version, err := r.store.Put(repoID, branch, g)
	if err != nil {
		r.publishStatus(repoID, branch, "error", fmt.Sprintf("publish failed: %v", err), 4, 4)
		return nil, fmt.Errorf("failed to publish snapshot: %w", err)
	}

	r.publishStatus(repoID, branch, "published",
		fmt.Sprintf("Published version %d", version), 4, 4)

	if r.publisher != nil {
		err := r.publisher.Publish("graph_published", "published", pubsub.GraphPublished{
			RepoID:      repoID,
			Branch:      branch,
			Version:     version,
			NodeCount:   g.NodeCount(),
			EdgeCount:   g.EdgeCount(),
			Approximate: g.Approximate,
		})
		if err != nil {
			logging.Warn("failed to publish graph notification", "error", err)
		}
	}

	logging.InfoContext(ctx, "graph build complete",
		"repo", repoID, "branch", branch, "version", version,
		"nodes", g.NodeCount(), "edges", g.EdgeCount(), "rejected", len(rejected))

	return &RunResult{Graph: g, Rejected: rejected}, nil
}

func (r *Runner) publishStatus(repoID, branch, state, message string, step, total int) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Publish("build_status", state, pubsub.BuildStatus{
		RepoID:  repoID,
		Branch:  branch,
		State:   state,
		Message: message,
		Step:    step,
		Total:   total,
	})
	if err != nil {
		logging.Warn("failed to publish build status", "state", state, "error", err)
	}
}
