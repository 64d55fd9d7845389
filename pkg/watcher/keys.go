package watcher

import (
	"sort"
	"strings"
)

// Key identifies the (repo, branch) pair a fact-record file feeds
type Key struct {
	RepoID string
	Branch string
	Path   string // absolute path of the facts file
}

const factsSuffix = ".facts.json"

// ParseFactsFileName extracts the graph key from a facts file name.
// Fact files are named "<repo>@<branch>.facts.json"; anything else is
// ignored by the watcher.
func ParseFactsFileName(name string) (Key, bool) {
	if !strings.HasSuffix(name, factsSuffix) {
		return Key{}, false
	}
	stem := strings.TrimSuffix(name, factsSuffix)

	repo, branch, found := strings.Cut(stem, "@")
	if !found {
		// No branch marker: treat the whole stem as the repo on main
		repo, branch = stem, "main"
	}
	if repo == "" || branch == "" {
		return Key{}, false
	}

	return Key{RepoID: repo, Branch: branch}, true
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RepoID != keys[j].RepoID {
			return keys[i].RepoID < keys[j].RepoID
		}
		return keys[i].Branch < keys[j].Branch
	})
}
