// Package relate extracts unresolved call and import references from
// source files. References are lazy: resolution to a concrete graph
// edge happens at pipeline transaction-commit time (see
// internal/index/resolve.go), not here.
package relate

// CallRef is an unresolved call/invocation occurrence.
type CallRef struct {
	// Name is the callee identifier. For scoped paths like `mod::func`
	// or `obj.method`, Name is the trailing identifier.
	Name string
	// Context is the receiver or qualifier text, if any: for member
	// expressions the receiver ("obj" in `obj.method()`); for scoped
	// paths the prefix ("mod" in `mod::func()`).
	Context string
	// Line is the 1-based source line of the call.
	Line int
}

// ImportRef is an unresolved import/use/require occurrence.
type ImportRef struct {
	// Name is the imported module or symbol name.
	Name string
	// Alias is the local binding name, if the import renames it.
	Alias string
	// Line is the 1-based source line of the import.
	Line int
}
