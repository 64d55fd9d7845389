package builder

import (
	"path"
	"strings"

	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/model"
)

// symbolTable maps the names a reference can be written as onto node ids.
// Registration order is canonical (sorted records), so the first-wins rule
// for bare names is deterministic.
type symbolTable struct {
	byName map[string]string // qualified name or alias form -> node id
	dirs   map[string]string // dotted directory name -> directory path
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		byName: make(map[string]string),
		dirs:   make(map[string]string),
	}
}

// register records a name -> node id mapping unless the name is taken.
func (t *symbolTable) register(name, nodeID string) {
	if name == "" {
		return
	}
	if _, taken := t.byName[name]; !taken {
		t.byName[name] = nodeID
	}
}

// registerFile registers the aliasing forms a file can be imported as: its
// path, the path without extension, and the dotted module name. The file's
// directory chain is recorded as module candidates.
func (t *symbolTable) registerFile(filePath string) {
	t.register(filePath, filePath)
	trimmed := trimExt(filePath)
	t.register(trimmed, filePath)
	t.register(dotted(trimmed), filePath)

	for dir := path.Dir(filePath); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		d := dotted(dir)
		if _, ok := t.dirs[d]; !ok {
			t.dirs[d] = dir
		}
	}
}

// registerSymbol registers a defined class/function under its qualified id,
// its dotted module-qualified name, and its bare name.
func (t *symbolTable) registerSymbol(filePath, name, nodeID string) {
	t.register(nodeID, nodeID)
	t.register(dotted(trimExt(filePath))+"."+name, nodeID)
	t.register(name, nodeID)
}

// lookup resolves a reference name to a node id, trying the name as written
// and its slash/dot variants.
func (t *symbolTable) lookup(name string) (string, bool) {
	if id, ok := t.byName[name]; ok {
		return id, true
	}
	if strings.Contains(name, "/") {
		if id, ok := t.byName[dotted(name)]; ok {
			return id, true
		}
	}
	return "", false
}

// moduleDir resolves a dotted name to a known directory, walking up parent
// prefixes so "pkg.util.helpers" can land on the "pkg/util" module.
func (t *symbolTable) moduleDir(name string) (string, bool) {
	cur := dotted(name)
	for cur != "" {
		if dir, ok := t.dirs[cur]; ok {
			return dir, true
		}
		i := strings.LastIndex(cur, ".")
		if i < 0 {
			return "", false
		}
		cur = cur[:i]
	}
	return "", false
}

func qualifiedSymbolID(filePath, name string) string {
	return filePath + "::" + name
}

func trimExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

func dotted(p string) string {
	return strings.ReplaceAll(strings.TrimPrefix(p, "/"), "/", ".")
}

// resolver performs the resolution pass: imports, call sites, and
// inheritance references are looked up in the symbol table, with synthetic
// external nodes standing in for anything unresolved.
type resolver struct {
	graph  *model.Graph
	table  *symbolTable
	warned map[string]bool
}

func (r *resolver) resolveRecord(f model.FileFacts) {
	// "import X as Y" aliases apply to reference prefixes within this file.
	aliases := make(map[string]string)
	for _, imp := range f.Imports {
		if imp.Alias != "" {
			aliases[imp.Alias] = imp.Name
		}
	}

	for _, imp := range f.Imports {
		if imp.Name == "" {
			continue
		}
		target := r.resolveImport(imp.Name, f.FilePath)
		r.graph.AddEdge(f.FilePath, target, model.EdgeKindImports, 1)
	}

	for _, call := range f.CallSites {
		if call.Callee == "" {
			continue
		}
		source := f.FilePath
		if call.Caller != "" {
			if id := qualifiedSymbolID(f.FilePath, call.Caller); r.graph.HasNode(id) {
				source = id
			}
		}
		target := r.resolveRef(call.Callee, f.FilePath, aliases)
		r.graph.AddEdge(source, target, model.EdgeKindCalls, 1)
	}

	for _, inh := range f.InheritsFrom {
		if inh.Class == "" || inh.Base == "" {
			continue
		}
		source := f.FilePath
		if id := qualifiedSymbolID(f.FilePath, inh.Class); r.graph.HasNode(id) {
			source = id
		}
		target := r.resolveRef(inh.Base, f.FilePath, aliases)
		r.graph.AddEdge(source, target, model.EdgeKindInherits, 1)
	}
}

// resolveImport maps an import name to a node id: a known file, a known
// module directory, or a synthetic external node.
func (r *resolver) resolveImport(name, fromFile string) string {
	resolved := name
	if strings.HasPrefix(name, ".") {
		resolved = resolveRelative(name, fromFile)
	}
	if id, ok := r.table.lookup(resolved); ok {
		return id
	}
	if dir, ok := r.table.moduleDir(resolved); ok {
		return r.moduleNode(dir)
	}
	return r.externalNode(name)
}

// resolveRef maps a call/inherit reference to a node id. Bare names are
// tried against the referencing file's own symbols first (same-module bare
// reference), then the global table; dotted names have import aliases
// rewritten before lookup.
func (r *resolver) resolveRef(name, fromFile string, aliases map[string]string) string {
	rewritten := name
	if head, rest, ok := strings.Cut(name, "."); ok {
		if actual, aliased := aliases[head]; aliased {
			rewritten = actual + "." + rest
		}
	} else if actual, aliased := aliases[name]; aliased {
		rewritten = actual
	}

	if !strings.Contains(rewritten, ".") {
		if id := qualifiedSymbolID(fromFile, rewritten); r.graph.HasNode(id) {
			return id
		}
	}
	if id, ok := r.table.lookup(rewritten); ok {
		return id
	}
	if dir, ok := r.table.moduleDir(rewritten); ok {
		return r.moduleNode(dir)
	}
	return r.externalNode(rewritten)
}

// moduleNode returns the Module node for a known directory, creating it on
// first reference.
func (r *resolver) moduleNode(dir string) string {
	if !r.graph.HasNode(dir) {
		r.graph.AddNode(&model.Node{ID: dir, Kind: model.NodeKindModule})
	}
	return dir
}

// externalNode returns the synthetic node for an unresolved name, creating
// and warning once per distinct name. Keeping the edge instead of dropping
// it preserves connectivity for downstream traversal.
func (r *resolver) externalNode(name string) string {
	id := "ext:" + name
	if !r.graph.HasNode(id) {
		r.graph.AddNode(&model.Node{ID: id, Kind: model.NodeKindExternalUnresolved})
	}
	if !r.warned[name] {
		r.warned[name] = true
		logging.Warn("unresolved reference, created external node", "name", name)
	}
	return id
}

// resolveRelative converts a leading-dot import ("..pkg.mod") into a path
// relative to the importing file's directory.
func resolveRelative(name, fromFile string) string {
	dots := 0
	for dots < len(name) && name[dots] == '.' {
		dots++
	}
	base := path.Dir(fromFile)
	for i := 1; i < dots; i++ {
		base = path.Dir(base)
	}
	rest := strings.ReplaceAll(name[dots:], ".", "/")
	if rest == "" {
		return base
	}
	if base == "." || base == "/" {
		return rest
	}
	return base + "/" + rest
}
