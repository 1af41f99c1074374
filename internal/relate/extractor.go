package relate

import (
	"context"
	"strings"

	"github.com/coderet/coderet/internal/chunk"
)

// callNodeTypes maps a language name to the tree-sitter node types that
// represent a call/invocation expression in that language.
var callNodeTypes = map[string][]string{
	"go":         {"call_expression"},
	"python":     {"call"},
	"javascript": {"call_expression"},
	"jsx":        {"call_expression"},
	"typescript": {"call_expression"},
	"tsx":        {"call_expression"},
}

// Extractor walks per-file ASTs to produce unresolved call and import
// references. It shares the tree-sitter parser and language registry
// with internal/chunk rather than re-implementing AST plumbing.
//
// Grounded on a reference Rust implementation's relations.rs (receiver/
// qualifier parsing, scoped-path trailing-identifier rule) and its
// graph.rs call/import extraction helpers, generalized to use the
// already-available tree-sitter node wrapper instead of re-parsing with
// ad hoc queries.
type Extractor struct {
	parser   *chunk.Parser
	registry *chunk.LanguageRegistry
}

// NewExtractor creates a relation extractor using the default language registry.
func NewExtractor() *Extractor {
	return &Extractor{
		parser:   chunk.NewParser(),
		registry: chunk.DefaultRegistry(),
	}
}

// ExtractCalls returns every call/invocation occurrence in content.
func (e *Extractor) ExtractCalls(ctx context.Context, content []byte, language string) ([]CallRef, error) {
	types, ok := callNodeTypes[language]
	if !ok {
		return nil, nil
	}

	tree, err := e.parser.Parse(ctx, content, language)
	if err != nil {
		return nil, err
	}

	var refs []CallRef
	tree.Root.Walk(func(n *chunk.Node) bool {
		for _, t := range types {
			if n.Type == t {
				if ref, ok := parseCallNode(n, content, language); ok {
					refs = append(refs, ref)
				}
			}
		}
		return true
	})
	return refs, nil
}

// parseCallNode extracts {name, context, line} from a call-expression
// node. For member expressions, context is the receiver text; for
// scoped paths like `Mod::func`, the trailing identifier is the name
// and the prefix is the context.
func parseCallNode(n *chunk.Node, source []byte, language string) (CallRef, bool) {
	// function field is conventionally the first named child for every
	// grammar wired here (call_expression/call -> function, arguments).
	named := n.NamedChildren()
	if len(named) == 0 {
		return CallRef{}, false
	}
	fn := named[0]
	line := int(n.StartPoint.Row) + 1

	switch fn.Type {
	case "identifier":
		return CallRef{Name: fn.GetContent(source), Line: line}, true

	case "selector_expression", "member_expression", "attribute":
		// receiver.method(...) — last named child is the method name,
		// everything before it is the receiver/context.
		parts := fn.NamedChildren()
		if len(parts) < 2 {
			return CallRef{}, false
		}
		name := parts[len(parts)-1].GetContent(source)
		context := fn.GetContent(source)
		context = strings.TrimSuffix(context, "."+name)
		context = strings.TrimSuffix(context, name)
		return CallRef{Name: name, Context: context, Line: line}, true

	case "qualified_identifier", "scoped_identifier":
		text := fn.GetContent(source)
		name, qualifier := splitScopedPath(text)
		return CallRef{Name: name, Context: qualifier, Line: line}, true

	default:
		// Fallback: use the raw text, splitting on common separators.
		text := fn.GetContent(source)
		name, qualifier := splitScopedPath(text)
		if name == "" {
			return CallRef{}, false
		}
		return CallRef{Name: name, Context: qualifier, Line: line}, true
	}
}

// splitScopedPath splits text like `Mod::func`, `pkg.Func`, or
// `a/b/func` into (trailing identifier, prefix).
func splitScopedPath(text string) (name, qualifier string) {
	for _, sep := range []string{"::", ".", "/"} {
		if idx := strings.LastIndex(text, sep); idx >= 0 {
			return text[idx+len(sep):], text[:idx]
		}
	}
	return text, ""
}

// ExtractImports returns every import/use/require occurrence in
// content. Per-language line-oriented heuristics, matching the
// simplicity of the reference implementation's own import extraction
// (which uses line scanning even where it uses AST queries for calls).
func (e *Extractor) ExtractImports(content []byte, language string) []ImportRef {
	switch language {
	case "go":
		return extractGoImports(string(content))
	case "python":
		return extractPythonImports(string(content))
	case "javascript", "jsx", "typescript", "tsx":
		return extractJSImports(string(content))
	default:
		return nil
	}
}

func extractGoImports(content string) []ImportRef {
	var refs []ImportRef
	lines := strings.Split(content, "\n")
	inBlock := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		switch {
		case strings.HasPrefix(line, "import ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock, strings.HasPrefix(line, "import "):
			spec := strings.TrimPrefix(line, "import ")
			spec = strings.TrimSpace(spec)
			if spec == "" || spec == "(" {
				continue
			}
			alias := ""
			fields := strings.Fields(spec)
			if len(fields) == 2 {
				alias = fields[0]
				spec = fields[1]
			}
			spec = strings.Trim(spec, `"`)
			if spec == "" {
				continue
			}
			name := spec
			if idx := strings.LastIndex(spec, "/"); idx >= 0 {
				name = spec[idx+1:]
			}
			refs = append(refs, ImportRef{Name: name, Alias: alias, Line: lineNo})
		}
	}
	return refs
}

func extractPythonImports(content string) []ImportRef {
	var refs []ImportRef
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		switch {
		case strings.HasPrefix(line, "import "):
			rest := strings.TrimPrefix(line, "import ")
			for _, part := range strings.Split(rest, ",") {
				name, alias := splitAs(strings.TrimSpace(part))
				refs = append(refs, ImportRef{Name: name, Alias: alias, Line: lineNo})
			}
		case strings.HasPrefix(line, "from "):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				refs = append(refs, ImportRef{Name: fields[1], Line: lineNo})
			}
		}
	}
	return refs
}

func splitAs(spec string) (name, alias string) {
	if idx := strings.Index(spec, " as "); idx >= 0 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+4:])
	}
	return spec, ""
}

func extractJSImports(content string) []ImportRef {
	var refs []ImportRef
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		switch {
		case strings.HasPrefix(line, "import "):
			if idx := strings.Index(line, "from"); idx >= 0 {
				rest := strings.TrimSpace(line[idx+4:])
				module := strings.Trim(rest, `"'; `)
				bindings := strings.TrimSpace(line[len("import "):idx])
				refs = append(refs, parseNamedImports(bindings, module, lineNo)...)
			}
		case strings.Contains(line, "require("):
			if idx := strings.Index(line, "require("); idx >= 0 {
				rest := line[idx+len("require("):]
				if end := strings.IndexAny(rest, ")"); end >= 0 {
					module := strings.Trim(rest[:end], `"' `)
					refs = append(refs, ImportRef{Name: module, Line: lineNo})
				}
			}
		}
	}
	return refs
}

// parseNamedImports expands `{A, B as C}` or a default binding into
// `module/symbol` names with alias on the local binding, per spec.
func parseNamedImports(bindings, module string, line int) []ImportRef {
	bindings = strings.TrimSpace(bindings)
	if bindings == "" {
		return []ImportRef{{Name: module, Line: line}}
	}
	if strings.HasPrefix(bindings, "{") {
		bindings = strings.Trim(bindings, "{}")
		var refs []ImportRef
		for _, part := range strings.Split(bindings, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, alias := splitImportAs(part)
			refs = append(refs, ImportRef{Name: module + "/" + name, Alias: alias, Line: line})
		}
		return refs
	}
	// default import binding
	return []ImportRef{{Name: module, Alias: bindings, Line: line}}
}

func splitImportAs(spec string) (name, alias string) {
	if idx := strings.Index(spec, " as "); idx >= 0 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+4:])
	}
	return spec, ""
}
