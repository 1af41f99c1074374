package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/store"
)

// ContentStore is the content-addressed surface of a metadata store:
// raw content blobs keyed by hash, whole-file snapshots keyed by path,
// and the per-run commit log. *store.SQLiteStore implements it; a
// metadata store that doesn't is skipped at commit time.
type ContentStore interface {
	PutContent(ctx context.Context, hash string, content []byte) error
	PutFileBlob(ctx context.Context, projectID, path string, content []byte) error
	AppendCommitLog(ctx context.Context, projectID, runID string, newCount, updated, removed, skipped int) error
}

// TransactionStores are the index surfaces a Transaction commits to.
// Graph may be nil when the deployment has no code graph; GraphPath,
// BM25Path, and VectorPath are the on-disk persistence targets flushed
// at the end of a successful commit (empty string skips that flush).
type TransactionStores struct {
	BM25       store.BM25Index
	Vector     store.VectorStore
	Metadata   store.MetadataStore
	Graph      *graph.Graph
	BM25Path   string
	VectorPath string
	GraphPath  string
}

// CommitCounts summarizes one pipeline run for the commit log.
type CommitCounts struct {
	New     int
	Updated int
	Removed int
	Skipped int
}

// Transaction buffers writes across the lexical index, vector index,
// metadata/content stores, and code graph, then applies them in a fixed
// order at Commit: lexical adds, stale-chunk deletes, content puts,
// file-blob puts, graph file-node deletes, vector adds, file metadata
// updates, graph node/edge upserts, graph persistence, commit log.
//
// The fixed order means a reader who opens the indices between phases
// sees monotonically advancing state (lexical first, graph last). Each
// index commits individually — there is no cross-index two-phase
// commit, so a crash mid-commit can leave earlier indices advanced;
// every operation is delete-then-insert idempotent, so the next
// successful run replays the delta. Rollback before Commit drops every
// buffered write without touching any store.
type Transaction struct {
	stores    TransactionStores
	projectID string
	runID     string

	lexDocs    []*store.Document
	staleIDs   []string
	chunks     []*store.Chunk
	contents   []contentPut
	fileBlobs  []blobPut
	delPaths   []string
	vecIDs     []string
	vectors    [][]float32
	files      []*store.File
	nodes      []graph.Node
	edges      []graph.Edge
	counts     CommitCounts
	haveCounts bool
	done       bool
}

type contentPut struct {
	hash  string
	bytes []byte
}

type blobPut struct {
	path  string
	bytes []byte
}

// NewTransaction starts an empty transaction over stores for one
// pipeline run. runID tags the commit-log entry written at the end of
// a successful commit.
func NewTransaction(stores TransactionStores, projectID, runID string) *Transaction {
	return &Transaction{stores: stores, projectID: projectID, runID: runID}
}

// Graph exposes the transaction's graph for bulk builders. For a full
// rebuild the caller hands in a fresh graph and populates it directly;
// the graph still only reaches disk when Commit's persistence step
// runs, so buffering semantics hold.
func (tx *Transaction) Graph() *graph.Graph {
	return tx.stores.Graph
}

// AddChunk buffers one chunk for the lexical index and the chunk store.
func (tx *Transaction) AddChunk(c *store.Chunk) {
	tx.chunks = append(tx.chunks, c)
	tx.lexDocs = append(tx.lexDocs, &store.Document{ID: c.ID, Content: c.Content})
}

// AddVector buffers one chunk embedding for the vector index.
func (tx *Transaction) AddVector(id string, vec []float32) {
	tx.vecIDs = append(tx.vecIDs, id)
	tx.vectors = append(tx.vectors, vec)
}

// DeleteChunks buffers stale chunk ids for removal from the lexical
// index, vector index, and chunk store.
func (tx *Transaction) DeleteChunks(ids []string) {
	tx.staleIDs = append(tx.staleIDs, ids...)
}

// DeleteFileNode buffers the removal of path's graph nodes (and their
// incident edges).
func (tx *Transaction) DeleteFileNode(path string) {
	tx.delPaths = append(tx.delPaths, path)
}

// PutContent buffers a content-addressed blob write.
func (tx *Transaction) PutContent(hash string, content []byte) {
	tx.contents = append(tx.contents, contentPut{hash: hash, bytes: content})
}

// PutFileBlob buffers a whole-file snapshot write.
func (tx *Transaction) PutFileBlob(path string, content []byte) {
	tx.fileBlobs = append(tx.fileBlobs, blobPut{path: path, bytes: content})
}

// UpdateFileMetadata buffers a file metadata upsert. Every currently
// present file gets one per run, including unchanged files, so the
// last-indexed timestamp advances.
func (tx *Transaction) UpdateFileMetadata(files ...*store.File) {
	tx.files = append(tx.files, files...)
}

// AddGraphNode buffers a graph node upsert.
func (tx *Transaction) AddGraphNode(n graph.Node) {
	tx.nodes = append(tx.nodes, n)
}

// AddGraphEdge buffers a graph edge upsert.
func (tx *Transaction) AddGraphEdge(e graph.Edge) {
	tx.edges = append(tx.edges, e)
}

// RecordCounts sets the run summary written to the commit log.
func (tx *Transaction) RecordCounts(c CommitCounts) {
	tx.counts = c
	tx.haveCounts = true
}

// Rollback drops every buffered write. No store is touched. Calling
// Rollback after Commit is a no-op.
func (tx *Transaction) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.lexDocs = nil
	tx.staleIDs = nil
	tx.chunks = nil
	tx.contents = nil
	tx.fileBlobs = nil
	tx.delPaths = nil
	tx.vecIDs = nil
	tx.vectors = nil
	tx.files = nil
	tx.nodes = nil
	tx.edges = nil
}

// Commit applies the buffered writes in the fixed order. The first
// error aborts the remaining phases and is returned; already-applied
// phases are not undone (see the type doc for the replay mitigation).
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.done {
		return fmt.Errorf("transaction already finished")
	}
	tx.done = true

	// Lexical writer: adds first, then stale deletes, then flush.
	if len(tx.lexDocs) > 0 {
		if err := tx.stores.BM25.Index(ctx, tx.lexDocs); err != nil {
			return fmt.Errorf("commit lexical adds: %w", err)
		}
	}
	if len(tx.staleIDs) > 0 {
		if err := tx.stores.BM25.Delete(ctx, tx.staleIDs); err != nil {
			return fmt.Errorf("commit lexical deletes: %w", err)
		}
	}
	if tx.stores.BM25Path != "" {
		if err := tx.stores.BM25.Save(tx.stores.BM25Path); err != nil {
			return fmt.Errorf("persist lexical index: %w", err)
		}
	}

	// Chunk store: stale deletes then adds.
	if len(tx.staleIDs) > 0 {
		if err := tx.stores.Metadata.DeleteChunks(ctx, tx.staleIDs); err != nil {
			return fmt.Errorf("commit chunk deletes: %w", err)
		}
	}
	if len(tx.chunks) > 0 {
		if err := tx.stores.Metadata.SaveChunks(ctx, tx.chunks); err != nil {
			return fmt.Errorf("commit chunk adds: %w", err)
		}
	}

	// Content and file-blob puts, when the metadata store supports them.
	if cs, ok := tx.stores.Metadata.(ContentStore); ok {
		for _, p := range tx.contents {
			if err := cs.PutContent(ctx, p.hash, p.bytes); err != nil {
				return fmt.Errorf("commit content put: %w", err)
			}
		}
		for _, b := range tx.fileBlobs {
			if err := cs.PutFileBlob(ctx, tx.projectID, b.path, b.bytes); err != nil {
				return fmt.Errorf("commit file blob put: %w", err)
			}
		}
	}

	// Graph file-node deletes precede vector adds so a reader never sees
	// a graph pointing at chunks the vector index has already dropped.
	if tx.stores.Graph != nil {
		for _, p := range tx.delPaths {
			tx.stores.Graph.DeleteNodesForFile(p)
		}
	}

	// Vector adds (stale ids were buffered; vectors are delete-then-add).
	if len(tx.staleIDs) > 0 {
		if err := tx.stores.Vector.Delete(ctx, tx.staleIDs); err != nil {
			return fmt.Errorf("commit vector deletes: %w", err)
		}
	}
	if len(tx.vecIDs) > 0 {
		if err := tx.stores.Vector.Add(ctx, tx.vecIDs, tx.vectors); err != nil {
			return fmt.Errorf("commit vector adds: %w", err)
		}
	}
	if tx.stores.VectorPath != "" {
		if err := tx.stores.Vector.Save(tx.stores.VectorPath); err != nil {
			return fmt.Errorf("persist vector index: %w", err)
		}
	}

	// File metadata updates.
	if len(tx.files) > 0 {
		if err := tx.stores.Metadata.SaveFiles(ctx, tx.files); err != nil {
			return fmt.Errorf("commit file metadata: %w", err)
		}
	}

	// Graph node/edge upserts, then persistence.
	if tx.stores.Graph != nil {
		for _, n := range tx.nodes {
			tx.stores.Graph.AddNode(n)
		}
		for _, e := range tx.edges {
			tx.stores.Graph.AddEdge(e)
		}
		if tx.stores.GraphPath != "" {
			if err := os.MkdirAll(filepath.Dir(tx.stores.GraphPath), 0o755); err != nil {
				return fmt.Errorf("persist graph: %w", err)
			}
			if err := graph.Save(tx.stores.Graph, tx.stores.GraphPath); err != nil {
				return fmt.Errorf("persist graph: %w", err)
			}
		}
	}

	// Commit log last: an entry exists only for fully committed runs.
	if tx.haveCounts {
		if cs, ok := tx.stores.Metadata.(ContentStore); ok {
			if err := cs.AppendCommitLog(ctx, tx.projectID, tx.runID, tx.counts.New, tx.counts.Updated, tx.counts.Removed, tx.counts.Skipped); err != nil {
				slog.Warn("failed to append commit log entry",
					slog.String("run_id", tx.runID),
					slog.String("error", err.Error()))
			}
		}
	}

	return nil
}
