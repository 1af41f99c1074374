package index

import (
	"testing"

	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/relate"
)

func TestResolveCall_QualifierSelectsMatchingPath(t *testing.T) {
	// Given: two symbols named Load, one under store/, one elsewhere
	si := newSymbolIndex()
	inStore := graph.Node{ID: "store/a.go:Load:1", Kind: graph.NodeSymbol, FilePath: "store/a.go"}
	other := graph.Node{ID: "other/b.go:Load:1", Kind: graph.NodeSymbol, FilePath: "other/b.go"}
	si.add(other, "Load")
	si.add(inStore, "Load")

	// When: resolving a qualified call `store::Load()` from an unrelated file
	got, ok := resolveCall(si, "unrelated/caller.go", relate.CallRef{Name: "Load", Context: "store"})

	// Then: the qualifier, not the caller's own path, picks the candidate
	if !ok {
		t.Fatalf("expected resolution to succeed")
	}
	if got.ID != inStore.ID {
		t.Fatalf("expected %s, got %s", inStore.ID, got.ID)
	}
}

func TestResolveCall_ScopedQualifierNormalizedToPath(t *testing.T) {
	// Given: the target lives under mod/sub/, the call says mod::sub::Func()
	si := newSymbolIndex()
	deep := graph.Node{ID: "mod/sub/f.go:Func:1", Kind: graph.NodeSymbol, FilePath: "mod/sub/f.go"}
	decoy := graph.Node{ID: "caller/f.go:Func:1", Kind: graph.NodeSymbol, FilePath: "caller/f.go"}
	si.add(decoy, "Func")
	si.add(deep, "Func")

	// When: the qualifier shares no prefix with the caller's path
	got, ok := resolveCall(si, "caller/main.go", relate.CallRef{Name: "Func", Context: "mod::sub"})

	// Then: `mod::sub` normalizes to `mod/sub` and wins over the
	// caller-path decoy
	if !ok {
		t.Fatalf("expected resolution to succeed")
	}
	if got.ID != deep.ID {
		t.Fatalf("expected %s, got %s", deep.ID, got.ID)
	}
}

func TestResolveCall_AmbiguousQualifierPrefersFirstCandidate(t *testing.T) {
	// Given: two candidates whose paths both contain the qualifier
	si := newSymbolIndex()
	first := graph.Node{ID: "store/a.go:Open:1", Kind: graph.NodeSymbol, FilePath: "store/a.go"}
	second := graph.Node{ID: "store/b.go:Open:1", Kind: graph.NodeSymbol, FilePath: "store/b.go"}
	si.add(first, "Open")
	si.add(second, "Open")

	got, ok := resolveCall(si, "caller.go", relate.CallRef{Name: "Open", Context: "store"})
	if !ok {
		t.Fatalf("expected resolution to succeed")
	}
	if got.ID != first.ID {
		t.Fatalf("ambiguous qualifier match should prefer the first candidate, got %s", got.ID)
	}
}

func TestResolveCall_NoQualifierFallsBackToCallerPathPrefix(t *testing.T) {
	// Given: an unqualified call and two candidates
	si := newSymbolIndex()
	near := graph.Node{ID: "mod/x/a.go:Load:1", Kind: graph.NodeSymbol, FilePath: "mod/x/a.go"}
	far := graph.Node{ID: "other/b.go:Load:1", Kind: graph.NodeSymbol, FilePath: "other/b.go"}
	si.add(near, "Load")
	si.add(far, "Load")

	// When: resolving a bare `Load()` from a file under mod/x
	got, ok := resolveCall(si, "mod/x/caller.go", relate.CallRef{Name: "Load"})

	// Then: the candidate sharing the longest path prefix with the
	// caller wins
	if !ok {
		t.Fatalf("expected resolution to succeed")
	}
	if got.ID != near.ID {
		t.Fatalf("expected %s, got %s", near.ID, got.ID)
	}
}

func TestResolveCall_FallsBackToRightmostIdentifier(t *testing.T) {
	// Given: a symbol named Func but a call written as mod::Func with no
	// separate qualifier
	si := newSymbolIndex()
	n := graph.Node{ID: "mod/a.go:Func:1", Kind: graph.NodeSymbol, FilePath: "mod/a.go"}
	si.add(n, "Func")

	// When: resolving the scoped call
	got, ok := resolveCall(si, "caller.go", relate.CallRef{Name: "mod::Func"})

	// Then: the rightmost identifier resolves it, with the stripped
	// prefix serving as the qualifier
	if !ok {
		t.Fatalf("expected resolution to succeed via rightmost identifier")
	}
	if got.ID != n.ID {
		t.Fatalf("expected %s, got %s", n.ID, got.ID)
	}
}

func TestResolveCall_DropsUnresolvableReference(t *testing.T) {
	// Given: an empty symbol index
	si := newSymbolIndex()

	// When: resolving any call
	_, ok := resolveCall(si, "caller.go", relate.CallRef{Name: "missing"})

	// Then: resolution fails and the caller is expected to drop the edge
	if ok {
		t.Fatalf("expected resolution to fail")
	}
}

func TestResolveImport_PathPrefixActsAsQualifier(t *testing.T) {
	// Given: two symbols named Config in different packages
	si := newSymbolIndex()
	inPkg := graph.Node{ID: "pkg/file.go:Config:1", Kind: graph.NodeSymbol, FilePath: "pkg/file.go"}
	decoy := graph.Node{ID: "caller/cfg.go:Config:1", Kind: graph.NodeSymbol, FilePath: "caller/cfg.go"}
	si.add(decoy, "Config")
	si.add(inPkg, "Config")

	// When: resolving an import written as a scoped path
	got, ok := resolveImport(si, "caller/main.go", relate.ImportRef{Name: "pkg.Config"})

	// Then: the import name's own prefix selects the pkg/ candidate
	if !ok {
		t.Fatalf("expected resolution to succeed")
	}
	if got.ID != inPkg.ID {
		t.Fatalf("expected %s, got %s", inPkg.ID, got.ID)
	}
}

func TestNormalizeQualifier(t *testing.T) {
	cases := map[string]string{
		"mod::sub": "mod/sub",
		"pkg.sub":  "pkg/sub",
		"  mod  ":  "mod",
		"/lead/":   "lead",
		"":         "",
	}
	for in, want := range cases {
		if got := normalizeQualifier(in); got != want {
			t.Errorf("normalizeQualifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRightmostIdentifier(t *testing.T) {
	cases := map[string]string{
		"pkg/sub::Type.Method": "Method",
		"mod::func":            "func",
		"a.b.c":                "c",
		"bare":                 "bare",
	}
	for in, want := range cases {
		if got := rightmostIdentifier(in); got != want {
			t.Errorf("rightmostIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScopedPrefix(t *testing.T) {
	cases := map[string]string{
		"pkg/sub::Func": "pkg/sub",
		"pkg.Config":    "pkg",
		"bare":          "",
	}
	for in, want := range cases {
		if got := scopedPrefix(in); got != want {
			t.Errorf("scopedPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommonPrefixLen(t *testing.T) {
	if got := commonPrefixLen("mod/x/a.go", "mod/x/b.go"); got != 6 {
		t.Fatalf("expected prefix length 6, got %d", got)
	}
	if got := commonPrefixLen("a.go", "b.go"); got != 0 {
		t.Fatalf("expected prefix length 0, got %d", got)
	}
}
