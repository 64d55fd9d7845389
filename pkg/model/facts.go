package model

import "time"

// FileFacts is the per-file structural-fact record produced by a source
// parser. The engine consumes these records; it never parses raw source.
type FileFacts struct {
	FilePath     string            `json:"filePath"`
	Language     string            `json:"language,omitempty"`
	SizeBytes    int64             `json:"sizeBytes,omitempty"`
	LastChanged  time.Time         `json:"lastChanged,omitzero"`
	TestCoverage *float64          `json:"testCoverage,omitempty"`
	Imports      []ImportRef       `json:"imports,omitempty"`
	Symbols      []SymbolDef       `json:"definedSymbols,omitempty"`
	CallSites    []CallRef         `json:"callSites,omitempty"`
	InheritsFrom []InheritRef      `json:"inheritsFrom,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ImportRef is an import statement in a file. Name is the imported module
// path or dotted name; Alias is set for "import X as Y" forms.
type ImportRef struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// SymbolKind distinguishes the kinds of defined symbols a parser reports.
type SymbolKind string

const (
	SymbolKindClass    SymbolKind = "class"
	SymbolKindFunction SymbolKind = "function"
)

// SymbolDef is a class or function defined in a file.
type SymbolDef struct {
	Name string     `json:"name"`
	Kind SymbolKind `json:"kind"`
}

// CallRef is a call site. Caller is the defined symbol containing the call
// (empty for module-level calls); Callee is the referenced name as written.
type CallRef struct {
	Caller string `json:"caller,omitempty"`
	Callee string `json:"callee"`
}

// InheritRef records that Class inherits from Base.
type InheritRef struct {
	Class string `json:"class"`
	Base  string `json:"base"`
}
