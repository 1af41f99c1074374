package index

import (
	"strings"

	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/relate"
)

// symbolIndex maps a symbol's bare name to every graph node defining a
// symbol with that name, across the whole project being indexed. It is
// the lookup table the relational pass uses to turn an unresolved
// CallRef/ImportRef into a graph edge.
type symbolIndex map[string][]graph.Node

func newSymbolIndex() symbolIndex {
	return make(symbolIndex)
}

func (si symbolIndex) add(n graph.Node, name string) {
	si[name] = append(si[name], n)
}

// resolveCall resolves a CallRef made from file srcFile to the symbol
// node it most likely targets: an exact name match, tie-broken by the
// call's qualifier (`mod` in `mod::func()`, the receiver in
// `obj.method()`) — the candidate whose file path contains the
// qualifier normalized to a path wins; with no qualifier (or no
// qualifier hit), the candidate sharing the longest path prefix with
// srcFile wins. Failing that, the rightmost identifier after a `::`,
// `.`, or `/` separator is retried with the stripped prefix as the
// qualifier; otherwise the call is left unresolved and the caller
// drops the edge.
func resolveCall(si symbolIndex, srcFile string, call relate.CallRef) (graph.Node, bool) {
	return resolveName(si, srcFile, call.Context, call.Name)
}

// resolveImport resolves an ImportRef the same way as resolveCall — an
// import's Name is typically a module/package path, so the path prefix
// serves as the qualifier and the trailing segment as the fallback
// candidate symbol or file name.
func resolveImport(si symbolIndex, srcFile string, imp relate.ImportRef) (graph.Node, bool) {
	return resolveName(si, srcFile, "", imp.Name)
}

func resolveName(si symbolIndex, srcFile, qualifier, name string) (graph.Node, bool) {
	if n, ok := si.bestMatch(srcFile, qualifier, name); ok {
		return n, true
	}
	if rightmost := rightmostIdentifier(name); rightmost != name {
		// A scoped name like `pkg.Func` carries its own qualifier: the
		// prefix left of the trailing identifier.
		if qualifier == "" {
			qualifier = scopedPrefix(name)
		}
		if n, ok := si.bestMatch(srcFile, qualifier, rightmost); ok {
			return n, true
		}
	}
	return graph.Node{}, false
}

// bestMatch picks among every node defining a symbol named name. With a
// qualifier, the first candidate whose file path contains the qualifier
// normalized to a path wins — ambiguous qualifier matches silently
// prefer the first candidate. Without a qualifier (or when no
// candidate's path contains it), the candidate with the longest shared
// file-path prefix with srcFile wins.
func (si symbolIndex) bestMatch(srcFile, qualifier, name string) (graph.Node, bool) {
	candidates := si[name]
	if len(candidates) == 0 {
		return graph.Node{}, false
	}

	if qualPath := normalizeQualifier(qualifier); qualPath != "" {
		for _, c := range candidates {
			if strings.Contains(c.FilePath, qualPath) {
				return c, true
			}
		}
	}

	best := candidates[0]
	bestLen := commonPrefixLen(srcFile, best.FilePath)
	for _, c := range candidates[1:] {
		if l := commonPrefixLen(srcFile, c.FilePath); l > bestLen {
			best, bestLen = c, l
		}
	}
	return best, true
}

// normalizeQualifier turns a call qualifier (`mod::sub`, `pkg.sub`)
// into a path fragment (`mod/sub`) for matching against symbol file
// paths. Receiver-style qualifiers that aren't path-like still come
// out as a plain substring to match.
func normalizeQualifier(qualifier string) string {
	q := strings.TrimSpace(qualifier)
	q = strings.ReplaceAll(q, "::", "/")
	q = strings.ReplaceAll(q, ".", "/")
	return strings.Trim(q, "/")
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// rightmostIdentifier returns the final segment of a scoped or qualified
// name split on `::`, `.`, or `/`, e.g. "pkg/sub::Type.Method" -> "Method".
func rightmostIdentifier(name string) string {
	name = strings.ReplaceAll(name, "::", "/")
	name = strings.ReplaceAll(name, ".", "/")
	parts := strings.Split(name, "/")
	return parts[len(parts)-1]
}

// scopedPrefix returns everything left of the trailing identifier of a
// scoped name, e.g. "pkg/sub::Func" -> "pkg/sub"; "" for bare names.
func scopedPrefix(name string) string {
	name = strings.ReplaceAll(name, "::", "/")
	name = strings.ReplaceAll(name, ".", "/")
	if idx := strings.LastIndex(name, "/"); idx > 0 {
		return name[:idx]
	}
	return ""
}
