package index

import (
	"context"
	"sort"
	"testing"

	"github.com/coderet/coderet/internal/store"
)

func diffRunner(meta *MockMetadataStore) *Runner {
	return &Runner{metadata: meta}
}

func TestDiffAgainstPrior_FirstRunIsAllNew(t *testing.T) {
	r := diffRunner(&MockMetadataStore{})
	scanned := []*store.File{{ID: "f1", Path: "a.go", ContentHash: "h1"}}

	d, err := r.diffAgainstPrior(context.Background(), "proj", scanned, map[string]struct{}{"c1": {}})
	if err != nil {
		t.Fatalf("diffAgainstPrior: %v", err)
	}
	if d.counts.New != 1 || d.counts.Updated != 0 || d.counts.Removed != 0 {
		t.Fatalf("expected 1 new file, got %+v", d.counts)
	}
	if len(d.staleChunkIDs) != 0 {
		t.Fatalf("expected no stale chunks on a first run, got %v", d.staleChunkIDs)
	}
}

func TestDiffAgainstPrior_UnchangedFileProducesNothing(t *testing.T) {
	meta := &MockMetadataStore{
		ReconcileFiles: map[string]*store.File{
			"a.go": {ID: "f1", Path: "a.go", ContentHash: "h1"},
		},
		ChunksByFile: map[string][]*store.Chunk{
			"f1": {{ID: "c1", FileID: "f1"}},
		},
	}
	r := diffRunner(meta)
	scanned := []*store.File{{ID: "f1", Path: "a.go", ContentHash: "h1"}}

	d, err := r.diffAgainstPrior(context.Background(), "proj", scanned, map[string]struct{}{"c1": {}})
	if err != nil {
		t.Fatalf("diffAgainstPrior: %v", err)
	}
	if d.counts.New+d.counts.Updated+d.counts.Removed != 0 {
		t.Fatalf("expected no deltas for an unchanged file, got %+v", d.counts)
	}
	if len(d.staleChunkIDs) != 0 {
		t.Fatalf("expected no stale chunks, got %v", d.staleChunkIDs)
	}
}

func TestDiffAgainstPrior_ModifiedFileKeepsReemittedChunkIDs(t *testing.T) {
	// Given: a.go changed; one old chunk survives with the same id, one
	// went stale
	meta := &MockMetadataStore{
		ReconcileFiles: map[string]*store.File{
			"a.go": {ID: "f1", Path: "a.go", ContentHash: "old"},
		},
		ChunksByFile: map[string][]*store.Chunk{
			"f1": {{ID: "c-kept", FileID: "f1"}, {ID: "c-stale", FileID: "f1"}},
		},
	}
	r := diffRunner(meta)
	scanned := []*store.File{{ID: "f1", Path: "a.go", ContentHash: "new"}}
	newIDs := map[string]struct{}{"c-kept": {}, "c-added": {}}

	d, err := r.diffAgainstPrior(context.Background(), "proj", scanned, newIDs)
	if err != nil {
		t.Fatalf("diffAgainstPrior: %v", err)
	}
	if d.counts.Updated != 1 {
		t.Fatalf("expected 1 updated file, got %+v", d.counts)
	}
	if len(d.staleChunkIDs) != 1 || d.staleChunkIDs[0] != "c-stale" {
		t.Fatalf("expected only c-stale to go stale, got %v", d.staleChunkIDs)
	}
}

func TestDiffAgainstPrior_RemovedFileStalesAllItsChunks(t *testing.T) {
	meta := &MockMetadataStore{
		ReconcileFiles: map[string]*store.File{
			"gone.go": {ID: "f9", Path: "gone.go", ContentHash: "h"},
		},
		ChunksByFile: map[string][]*store.Chunk{
			"f9": {{ID: "c1", FileID: "f9"}, {ID: "c2", FileID: "f9"}},
		},
	}
	r := diffRunner(meta)

	d, err := r.diffAgainstPrior(context.Background(), "proj", nil, nil)
	if err != nil {
		t.Fatalf("diffAgainstPrior: %v", err)
	}
	if d.counts.Removed != 1 {
		t.Fatalf("expected 1 removed file, got %+v", d.counts)
	}
	sort.Strings(d.staleChunkIDs)
	if len(d.staleChunkIDs) != 2 || d.staleChunkIDs[0] != "c1" || d.staleChunkIDs[1] != "c2" {
		t.Fatalf("expected both chunks stale, got %v", d.staleChunkIDs)
	}
	if len(d.removedFileIDs) != 1 || d.removedFileIDs[0] != "f9" {
		t.Fatalf("expected f9 in removed file ids, got %v", d.removedFileIDs)
	}
	if len(d.removedPaths) != 1 || d.removedPaths[0] != "gone.go" {
		t.Fatalf("expected gone.go in removed paths, got %v", d.removedPaths)
	}
}
