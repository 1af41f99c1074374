package index

import (
	"context"
	"fmt"

	"github.com/coderet/coderet/internal/chunk"
	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/relate"
)

// fileUnit retains one file's source, chunks, and symbols between the
// structural and relational graph-building passes.
type fileUnit struct {
	path     string
	language string
	content  []byte
	chunks   []*chunk.Chunk
}

// GraphBuilder constructs the code graph from chunked, symbol-extracted
// files in two passes: first every file/symbol/chunk node plus the
// structural defines/contains edges, then — once every symbol in the
// project is known — the calls/imports edges, resolved by
// resolveCall/resolveImport. This mirrors the reference implementation's
// GraphBuilder two-pass design (see internal/graph's package doc).
type GraphBuilder struct {
	g         *graph.Graph
	extractor *relate.Extractor
	symbols   symbolIndex
	units     []fileUnit
}

// NewGraphBuilder constructs a builder that adds nodes and edges to g,
// with an empty symbolIndex — suitable for a full rebuild where every
// file in the project is about to be added via AddFile.
func NewGraphBuilder(g *graph.Graph) *GraphBuilder {
	return &GraphBuilder{
		g:         g,
		extractor: relate.NewExtractor(),
		symbols:   newSymbolIndex(),
	}
}

// NewIncrementalGraphBuilder constructs a builder whose symbolIndex is
// seeded from every symbol node already in g, so a single changed file's
// calls/imports can still resolve against symbols defined elsewhere in
// the project without re-adding every file.
func NewIncrementalGraphBuilder(g *graph.Graph) *GraphBuilder {
	b := NewGraphBuilder(g)
	for _, n := range g.NodesMatchingLabel("", graph.NodeSymbol) {
		b.symbols.add(n, n.Label)
	}
	return b
}

// AddFile runs the structural pass for one file: a file node, one chunk
// node per chunk with a "contains" edge from the file, one symbol node
// per extracted symbol with "defines" edges from both the file and its
// owning chunk, and a symbolIndex entry so the relational pass can
// resolve calls/imports into this file's symbols. content and chunks
// are retained for the later Relate pass.
func (b *GraphBuilder) AddFile(path, language string, content []byte, chunks []*chunk.Chunk) {
	b.g.DeleteNodesForFile(path)

	b.g.AddNode(graph.Node{ID: graph.NodeID(path), Kind: graph.NodeFile, Label: path, FilePath: path})

	for _, c := range chunks {
		chunkNodeID := graph.NodeID(c.ID)
		b.g.AddNode(graph.Node{
			ID:          chunkNodeID,
			Kind:        graph.NodeChunk,
			Label:       fmt.Sprintf("%s:%d-%d", path, c.StartLine, c.EndLine),
			CanonicalID: c.ID,
			FilePath:    path,
		})
		b.g.AddEdge(graph.Edge{Src: graph.NodeID(path), Dst: chunkNodeID, Kind: graph.EdgeContains})

		for _, sym := range c.Symbols {
			symNode := graph.Node{
				ID:          graph.NodeID(sym.ID),
				Kind:        graph.NodeSymbol,
				Label:       sym.Name,
				CanonicalID: sym.FQN,
				FilePath:    path,
			}
			b.g.AddNode(symNode)
			b.g.AddEdge(graph.Edge{Src: graph.NodeID(path), Dst: symNode.ID, Kind: graph.EdgeDefines})
			b.g.AddEdge(graph.Edge{Src: chunkNodeID, Dst: symNode.ID, Kind: graph.EdgeDefines})
			b.symbols.add(symNode, sym.Name)
		}
	}

	b.units = append(b.units, fileUnit{path: path, language: language, content: content, chunks: chunks})
}

// Relate runs the relational pass over every file retained by AddFile:
// extracts calls and imports, resolves each to a symbol node via the
// symbolIndex built during the structural pass, and adds the
// corresponding calls/imports edge. The edge's source is the smallest
// symbol whose line span covers the reference line, failing that the
// smallest covering chunk (calls only), failing that the file node.
// Unresolvable references are dropped, per resolveCall/resolveImport's
// final fallback.
func (b *GraphBuilder) Relate(ctx context.Context) {
	for _, u := range b.units {
		calls, err := b.extractor.ExtractCalls(ctx, u.content, u.language)
		if err == nil {
			for _, call := range calls {
				target, ok := resolveCall(b.symbols, u.path, call)
				if !ok {
					continue
				}
				if _, exists := b.g.GetNode(target.ID); !exists {
					continue
				}
				src := b.sourceNode(u, call.Line, true)
				if src != target.ID {
					b.g.AddEdge(graph.Edge{Src: src, Dst: target.ID, Kind: graph.EdgeCalls})
				}
			}
		}

		for _, imp := range b.extractor.ExtractImports(u.content, u.language) {
			target, ok := resolveImport(b.symbols, u.path, imp)
			if !ok {
				continue
			}
			if _, exists := b.g.GetNode(target.ID); !exists {
				continue
			}
			src := b.sourceNode(u, imp.Line, false)
			if src != target.ID {
				b.g.AddEdge(graph.Edge{Src: src, Dst: target.ID, Kind: graph.EdgeImports})
			}
		}
	}
}

// sourceNode resolves the graph node a reference at line originates
// from: the smallest symbol in the file whose span covers the line,
// else (when chunks are allowed as sources) the smallest covering
// chunk, else the file node.
func (b *GraphBuilder) sourceNode(u fileUnit, line int, allowChunk bool) graph.NodeID {
	if line > 0 {
		if id, ok := smallestCoveringSymbol(u.chunks, line); ok {
			return id
		}
		if allowChunk {
			if id, ok := smallestCoveringChunk(u.chunks, line); ok {
				return id
			}
		}
	}
	return graph.NodeID(u.path)
}

func smallestCoveringSymbol(chunks []*chunk.Chunk, line int) (graph.NodeID, bool) {
	var best graph.NodeID
	bestSpan := -1
	for _, c := range chunks {
		for _, sym := range c.Symbols {
			end := sym.EndLine
			if end < sym.StartLine {
				end = sym.StartLine
			}
			if sym.StartLine <= 0 || line < sym.StartLine || line > end {
				continue
			}
			span := end - sym.StartLine
			if bestSpan < 0 || span < bestSpan {
				best, bestSpan = graph.NodeID(sym.ID), span
			}
		}
	}
	return best, bestSpan >= 0
}

func smallestCoveringChunk(chunks []*chunk.Chunk, line int) (graph.NodeID, bool) {
	var best graph.NodeID
	bestSpan := -1
	for _, c := range chunks {
		if c.StartLine <= 0 || line < c.StartLine || line > c.EndLine {
			continue
		}
		span := c.EndLine - c.StartLine
		if bestSpan < 0 || span < bestSpan {
			best, bestSpan = graph.NodeID(c.ID), span
		}
	}
	return best, bestSpan >= 0
}
