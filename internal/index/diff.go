package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/store"
)

// fileDiff partitions a scan against the prior run's file metadata:
// which prior chunk ids went stale, which file records disappeared, and
// the new/updated/removed/unchanged counts for the commit log.
type fileDiff struct {
	staleChunkIDs  []string
	removedFileIDs []string
	removedPaths   []string
	counts         CommitCounts
}

// diffAgainstPrior compares the scanned file set against the metadata
// left by the previous run. A chunk id is stale when its owning file was
// modified or removed and the id is not re-emitted by this run's
// chunking — content-addressed ids mean an unchanged region of a
// modified file keeps its id and is simply re-added. Must run before
// this run's SaveFiles overwrites the prior hashes.
func (r *Runner) diffAgainstPrior(ctx context.Context, projectID string, storeFiles []*store.File, newChunkIDs map[string]struct{}) (fileDiff, error) {
	var d fileDiff

	prior, err := r.metadata.GetFilesForReconciliation(ctx, projectID)
	if err != nil {
		return d, fmt.Errorf("failed to load prior file metadata: %w", err)
	}

	scanned := make(map[string]*store.File, len(storeFiles))
	for _, f := range storeFiles {
		scanned[f.Path] = f
	}

	for path, pf := range prior {
		cur, present := scanned[path]
		if present && cur.ContentHash == pf.ContentHash {
			continue
		}

		chunks, err := r.metadata.GetChunksByFile(ctx, pf.ID)
		if err != nil {
			return d, fmt.Errorf("failed to load prior chunks for %s: %w", path, err)
		}
		for _, c := range chunks {
			if _, kept := newChunkIDs[c.ID]; !kept {
				d.staleChunkIDs = append(d.staleChunkIDs, c.ID)
			}
		}

		if present {
			d.counts.Updated++
		} else {
			d.counts.Removed++
			d.removedFileIDs = append(d.removedFileIDs, pf.ID)
			d.removedPaths = append(d.removedPaths, path)
		}
	}

	for path := range scanned {
		if _, was := prior[path]; !was {
			d.counts.New++
		}
	}

	return d, nil
}

// pruneToScan reconciles the index set when a run produced no chunks —
// an empty scan, or scanned files with nothing chunkable. Prior chunks
// whose files are gone or changed are deleted through a transaction so
// every index converges on the (possibly empty) scanned state.
func (r *Runner) pruneToScan(ctx context.Context, projectID, dataDir string, storeFiles []*store.File, newChunkIDs map[string]struct{}, warnCount int, now time.Time) error {
	diff, err := r.diffAgainstPrior(ctx, projectID, storeFiles, newChunkIDs)
	if err != nil {
		return err
	}
	if len(diff.staleChunkIDs) == 0 && diff.counts.Removed == 0 && len(storeFiles) == 0 {
		return nil
	}

	tx := NewTransaction(TransactionStores{
		BM25:       r.bm25,
		Vector:     r.vector,
		Metadata:   r.metadata,
		Graph:      graph.New(),
		BM25Path:   filepath.Join(dataDir, "bm25"),
		VectorPath: filepath.Join(dataDir, "vectors.hnsw"),
		GraphPath:  filepath.Join(dataDir, "graph.bin"),
	}, projectID, fmt.Sprintf("run-%d", now.UnixNano()))

	tx.DeleteChunks(diff.staleChunkIDs)
	for _, p := range diff.removedPaths {
		tx.DeleteFileNode(p)
	}
	tx.UpdateFileMetadata(storeFiles...)
	diff.counts.Skipped = warnCount
	tx.RecordCounts(diff.counts)

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index transaction: %w", err)
	}
	for _, id := range diff.removedFileIDs {
		if err := r.metadata.DeleteFile(ctx, id); err != nil {
			slog.Warn("failed to delete removed file record",
				slog.String("file_id", id),
				slog.String("error", err.Error()))
		}
	}
	return nil
}
