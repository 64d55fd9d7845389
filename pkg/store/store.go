package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/model"
)

// ErrNotFound is returned when no snapshot exists for a key or version.
var ErrNotFound = errors.New("snapshot not found")

// Store holds versioned, immutable graph snapshots keyed by
// (repoId, branch). Reads are lock-free against the last committed pointer;
// writes to the same key are serialized. A published snapshot is never
// mutated: a new Put produces a new version, and readers holding an older
// snapshot keep seeing it unchanged.
type Store struct {
	mu          sync.Mutex // guards the entries map itself
	entries     map[string]*entry
	historySize int
}

// entry is the per-key state: a write mutex, the committed snapshot
// pointer, and a bounded history of superseded versions.
type entry struct {
	writeMu sync.Mutex
	current atomic.Pointer[model.Graph]
	histMu  sync.Mutex
	history []*model.Graph
}

// New creates a store retaining up to historySize superseded versions per
// key (0 keeps only the current version).
func New(historySize int) *Store {
	if historySize < 0 {
		historySize = 0
	}
	return &Store{
		entries:     make(map[string]*entry),
		historySize: historySize,
	}
}

func key(repoID, branch string) string {
	return repoID + "\x00" + branch
}

func (s *Store) entryFor(repoID, branch string, create bool) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(repoID, branch)]
	if !ok && create {
		e = &entry{}
		s.entries[key(repoID, branch)] = e
	}
	return e
}

// Put publishes a graph as the new snapshot for (repoID, branch) and
// returns the assigned version. The swap is atomic: concurrent readers see
// either the previous complete snapshot or the new one, never a partial
// state. The caller must not modify the graph after Put.
func (s *Store) Put(repoID, branch string, g *model.Graph) (int64, error) {
	if repoID == "" || branch == "" {
		return 0, fmt.Errorf("repoId and branch are required")
	}
	e := s.entryFor(repoID, branch, true)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var version int64 = 1
	prev := e.current.Load()
	if prev != nil {
		version = prev.Version + 1
	}

	g.RepoID = repoID
	g.Branch = branch
	g.Version = version
	g.SnapshotID = uuid.New().String()
	g.BuiltAt = time.Now().UTC()

	e.current.Store(g)

	if prev != nil && s.historySize > 0 {
		e.histMu.Lock()
		e.history = append(e.history, prev)
		if len(e.history) > s.historySize {
			e.history = e.history[len(e.history)-s.historySize:]
		}
		e.histMu.Unlock()
	}

	logging.Info("published graph snapshot",
		"repo", repoID, "branch", branch, "version", version,
		"nodes", g.NodeCount(), "edges", g.EdgeCount())

	return version, nil
}

// Get returns the current snapshot for (repoID, branch), or ErrNotFound.
func (s *Store) Get(repoID, branch string) (*model.Graph, error) {
	e := s.entryFor(repoID, branch, false)
	if e == nil {
		return nil, fmt.Errorf("%s/%s: %w", repoID, branch, ErrNotFound)
	}
	g := e.current.Load()
	if g == nil {
		return nil, fmt.Errorf("%s/%s: %w", repoID, branch, ErrNotFound)
	}
	return g, nil
}

// GetVersion returns a specific snapshot version: the current one, or a
// superseded version still inside the retention window.
func (s *Store) GetVersion(repoID, branch string, version int64) (*model.Graph, error) {
	e := s.entryFor(repoID, branch, false)
	if e == nil {
		return nil, fmt.Errorf("%s/%s: %w", repoID, branch, ErrNotFound)
	}
	if g := e.current.Load(); g != nil && g.Version == version {
		return g, nil
	}
	e.histMu.Lock()
	defer e.histMu.Unlock()
	for _, g := range e.history {
		if g.Version == version {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%s/%s version %d: %w", repoID, branch, version, ErrNotFound)
}
