package relate

import (
	"context"
	"testing"
)

func TestExtractCalls_GoPlainIdentifier(t *testing.T) {
	// Given: a Go file calling a bare function
	src := []byte("package p\n\nfunc main() {\n\tloadConfig()\n}\n")

	// When: extracting calls
	refs, err := NewExtractor().ExtractCalls(context.Background(), src, "go")
	if err != nil {
		t.Fatalf("ExtractCalls: %v", err)
	}

	// Then: the bare call is reported with no context and the right line
	if len(refs) != 1 {
		t.Fatalf("expected 1 call ref, got %d: %+v", len(refs), refs)
	}
	if refs[0].Name != "loadConfig" {
		t.Fatalf("expected name loadConfig, got %q", refs[0].Name)
	}
	if refs[0].Context != "" {
		t.Fatalf("expected empty context, got %q", refs[0].Context)
	}
	if refs[0].Line != 4 {
		t.Fatalf("expected line 4, got %d", refs[0].Line)
	}
}

func TestExtractCalls_GoSelectorExpression(t *testing.T) {
	// Given: a Go file calling a method on a receiver
	src := []byte("package p\n\nfunc run() {\n\tcfg.Load()\n}\n")

	// When: extracting calls
	refs, err := NewExtractor().ExtractCalls(context.Background(), src, "go")
	if err != nil {
		t.Fatalf("ExtractCalls: %v", err)
	}

	// Then: the receiver is reported as Context, the method as Name
	if len(refs) != 1 {
		t.Fatalf("expected 1 call ref, got %d: %+v", len(refs), refs)
	}
	if refs[0].Name != "Load" {
		t.Fatalf("expected name Load, got %q", refs[0].Name)
	}
	if refs[0].Context != "cfg" {
		t.Fatalf("expected context cfg, got %q", refs[0].Context)
	}
}

func TestExtractCalls_UnknownLanguageReturnsNil(t *testing.T) {
	// Given: a language with no registered call node types
	refs, err := NewExtractor().ExtractCalls(context.Background(), []byte("x"), "cobol")

	// Then: no error, no refs
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if refs != nil {
		t.Fatalf("expected nil refs, got %+v", refs)
	}
}

func TestSplitScopedPath(t *testing.T) {
	cases := []struct {
		text     string
		wantName string
		wantQual string
	}{
		{"mod::func", "func", "mod"},
		{"pkg.Func", "Func", "pkg"},
		{"a/b/func", "func", "a/b"},
		{"bare", "bare", ""},
	}
	for _, c := range cases {
		name, qual := splitScopedPath(c.text)
		if name != c.wantName || qual != c.wantQual {
			t.Errorf("splitScopedPath(%q) = (%q, %q), want (%q, %q)", c.text, name, qual, c.wantName, c.wantQual)
		}
	}
}

func TestExtractImports_Go(t *testing.T) {
	// Given: a Go file with a single and a block import, one aliased
	src := []byte(`package p

import "fmt"

import (
	"strings"
	ioutil "io/ioutil"
)
`)

	// When: extracting imports
	refs := NewExtractor().ExtractImports(src, "go")

	// Then: all three imports are present, alias preserved for the third
	if len(refs) != 3 {
		t.Fatalf("expected 3 import refs, got %d: %+v", len(refs), refs)
	}
	names := map[string]string{}
	for _, r := range refs {
		names[r.Name] = r.Alias
	}
	if _, ok := names["fmt"]; !ok {
		t.Fatalf("expected fmt import, got %+v", refs)
	}
	if _, ok := names["strings"]; !ok {
		t.Fatalf("expected strings import, got %+v", refs)
	}
	if alias, ok := names["ioutil"]; !ok || alias != "ioutil" {
		t.Fatalf("expected aliased ioutil import, got %+v", refs)
	}
}

func TestExtractImports_Python(t *testing.T) {
	src := []byte("import os\nimport numpy as np\nfrom collections import OrderedDict\n")

	refs := NewExtractor().ExtractImports(src, "python")

	if len(refs) != 3 {
		t.Fatalf("expected 3 import refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].Name != "os" {
		t.Fatalf("expected os, got %q", refs[0].Name)
	}
	if refs[1].Name != "numpy" || refs[1].Alias != "np" {
		t.Fatalf("expected numpy aliased np, got %+v", refs[1])
	}
	if refs[2].Name != "collections" {
		t.Fatalf("expected collections, got %q", refs[2].Name)
	}
}

func TestExtractImports_JSNamedImportsExpandToModuleSlashSymbol(t *testing.T) {
	// Given: a named import with an alias
	src := []byte(`import { readFile as rf, writeFile } from "fs";`)

	// When: extracting imports
	refs := NewExtractor().ExtractImports(src, "javascript")

	// Then: each binding expands to module/symbol with alias on the local name
	if len(refs) != 2 {
		t.Fatalf("expected 2 import refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].Name != "fs/readFile" || refs[0].Alias != "rf" {
		t.Fatalf("expected fs/readFile aliased rf, got %+v", refs[0])
	}
	if refs[1].Name != "fs/writeFile" || refs[1].Alias != "" {
		t.Fatalf("expected fs/writeFile with no alias, got %+v", refs[1])
	}
}

func TestExtractImports_JSRequire(t *testing.T) {
	src := []byte(`const path = require("path");`)

	refs := NewExtractor().ExtractImports(src, "javascript")

	if len(refs) != 1 || refs[0].Name != "path" {
		t.Fatalf("expected single path import, got %+v", refs)
	}
}

func TestExtractImports_UnknownLanguageReturnsNil(t *testing.T) {
	refs := NewExtractor().ExtractImports([]byte("whatever"), "cobol")
	if refs != nil {
		t.Fatalf("expected nil refs, got %+v", refs)
	}
}
