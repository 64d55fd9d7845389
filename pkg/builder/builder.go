package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"runtime"
	"sort"
	"sync"

	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/metrics"
	"github.com/changelens/impact-engine/pkg/model"
)

// Options configures a graph build.
type Options struct {
	// Workers bounds the parallel record-normalization phase.
	Workers int
	// Metrics configures the structural metric computation that runs after
	// the edge set is fixed.
	Metrics metrics.Options
	// Progress, when set, is invoked at phase boundaries so callers can
	// stream build status.
	Progress func(state, message string, step, total int)
}

func (o Options) progress(state, message string, step, total int) {
	if o.Progress != nil {
		o.Progress(state, message, step, total)
	}
}

// Rejected describes a fact record that was excluded from the build.
type Rejected struct {
	FilePath string `json:"filePath"`
	Reason   string `json:"reason"`
}

// normalized pairs a fact record with its content digest, used for
// canonical ordering and duplicate detection.
type normalized struct {
	facts  model.FileFacts
	digest string
}

// Build constructs a typed dependency graph from an unordered collection of
// per-file structural-fact records. The result is order-independent: any
// permutation of the same record set yields an identical graph.
//
// Malformed records are rejected individually and the build continues; the
// build itself never fails. Unresolvable references become synthetic
// external nodes so connectivity is preserved for downstream traversal.
func Build(ctx context.Context, records []model.FileFacts, opts Options) (*model.Graph, []Rejected) {
	normed, rejected := normalize(records, opts.Workers)

	g := model.NewGraph()
	table := newSymbolTable()

	// Registration pass: every defined symbol becomes a node and the symbol
	// table learns all the names it can be referenced by.
	opts.progress("registering", "Registering files and symbols...", 1, 4)
	for _, n := range normed {
		registerRecord(g, table, n.facts)
	}

	// Resolution pass: references are looked up against the table; misses
	// become external nodes, never dropped edges.
	opts.progress("resolving", "Resolving references...", 2, 4)
	res := &resolver{graph: g, table: table, warned: make(map[string]bool)}
	for _, n := range normed {
		res.resolveRecord(n.facts)
	}

	opts.progress("metrics", "Computing structural metrics...", 3, 4)
	m, approximate := metrics.Compute(ctx, g, opts.Metrics)
	g.Metrics = m
	g.Approximate = approximate

	logging.Debug("graph build complete",
		"records", len(records), "rejected", len(rejected),
		"nodes", g.NodeCount(), "edges", g.EdgeCount(),
		"approximate", approximate)

	return g, rejected
}

// normalize digests records in a bounded parallel map phase, then sorts
// them into canonical order and applies per-record validation. Duplicate
// paths with identical content are deduplicated; duplicates with
// conflicting content keep the first record in canonical order and reject
// the rest.
func normalize(records []model.FileFacts, workers int) ([]normalized, []Rejected) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	normed := make([]normalized, len(records))
	var wg sync.WaitGroup
	work := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				normed[i] = normalized{facts: records[i], digest: digest(records[i])}
			}
		}()
	}
	for i := range records {
		work <- i
	}
	close(work)
	wg.Wait()

	sort.Slice(normed, func(i, j int) bool {
		if normed[i].facts.FilePath != normed[j].facts.FilePath {
			return normed[i].facts.FilePath < normed[j].facts.FilePath
		}
		return normed[i].digest < normed[j].digest
	})

	var rejected []Rejected
	kept := normed[:0]
	seen := make(map[string]string, len(normed)) // path -> digest of kept record
	for _, n := range normed {
		if n.facts.FilePath == "" {
			rejected = append(rejected, Rejected{Reason: "missing file path"})
			continue
		}
		if prev, dup := seen[n.facts.FilePath]; dup {
			if prev == n.digest {
				continue // identical duplicate, drop silently
			}
			rejected = append(rejected, Rejected{
				FilePath: n.facts.FilePath,
				Reason:   "duplicate file path with conflicting content",
			})
			continue
		}
		seen[n.facts.FilePath] = n.digest
		kept = append(kept, n)
	}
	return kept, rejected
}

// digest computes a stable content hash of a record. JSON struct encoding
// has a fixed field order and maps marshal with sorted keys, so the digest
// is deterministic.
func digest(f model.FileFacts) string {
	data, err := json.Marshal(f)
	if err != nil {
		// Marshaling plain structs of strings and numbers cannot fail.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// registerRecord adds the file node and its defined-symbol nodes, and
// registers their names with the symbol table.
func registerRecord(g *model.Graph, table *symbolTable, f model.FileFacts) {
	fileNode := &model.Node{
		ID:   f.FilePath,
		Kind: model.NodeKindFile,
		Attrs: model.NodeAttrs{
			Language:     f.Language,
			SizeBytes:    f.SizeBytes,
			LastChanged:  f.LastChanged,
			TestCoverage: f.TestCoverage,
			Extra:        capExtra(f.Extra),
		},
	}
	g.AddNode(fileNode)
	table.registerFile(f.FilePath)

	for _, sym := range f.Symbols {
		if sym.Name == "" {
			continue
		}
		kind := model.NodeKindFunction
		if sym.Kind == model.SymbolKindClass {
			kind = model.NodeKindClass
		}
		symID := qualifiedSymbolID(f.FilePath, sym.Name)
		g.AddNode(&model.Node{
			ID:   symID,
			Kind: kind,
			Attrs: model.NodeAttrs{
				Language:   f.Language,
				ParentFile: f.FilePath,
			},
		})
		table.registerSymbol(f.FilePath, sym.Name, symID)
	}
}

// capExtra bounds the open extension map; when over the cap, the
// lexicographically first keys are kept so the result is deterministic.
func capExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > model.MaxExtraAttrs {
		keys = keys[:model.MaxExtraAttrs]
	}
	capped := make(map[string]string, len(keys))
	for _, k := range keys {
		capped[k] = extra[k]
	}
	return capped
}
