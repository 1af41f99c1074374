package index

import (
	"context"

	"github.com/coderet/coderet/internal/chunk"
	"github.com/coderet/coderet/internal/ui"
)

// buildGraph rebuilds the code graph from this run's chunks and file
// contents into the transaction's graph; tx.Commit persists it to
// graph.bin after the lexical and vector writes land. Runner always
// performs a full scan, so the graph is rebuilt from scratch each run
// rather than patched incrementally; DeleteNodesForFile in
// GraphBuilder.AddFile still guards against duplicate nodes if a future
// incremental runner reuses this same builder across partial re-indexes.
func (r *Runner) buildGraph(ctx context.Context, tx *Transaction, allChunks []*chunk.Chunk, contents []fileContent) error {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageGraph,
		Message: "Building code graph...",
	})

	byFile := make(map[string][]*chunk.Chunk, len(contents))
	for _, c := range allChunks {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	builder := NewGraphBuilder(tx.Graph())
	for _, fc := range contents {
		builder.AddFile(fc.path, fc.language, fc.content, byFile[fc.path])
	}
	builder.Relate(ctx)

	return nil
}
