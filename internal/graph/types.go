// Package graph implements the code graph: a typed, directed multigraph
// of file/symbol/chunk nodes connected by defines/contains/calls/imports
// edges. It is the system's only cross-file structural index — the
// lexical and vector indices are per-chunk and know nothing of each
// other.
//
// Grounded on a reference Rust implementation's structure/graph.rs:
// GraphBuilder's two-pass construction (structural nodes+edges, then
// calls+imports resolution), its NodeId/EdgeType vocabulary, and its
// existing-edge dedup set. Translated into a Go adjacency-map instead
// of the original's Vec<Edge> + HashMap<NodeId, GraphNode> pair so that
// GetNeighbors/OutgoingEdges don't need a linear scan of all edges.
package graph

// NodeKind identifies what a graph node represents.
type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeSymbol NodeKind = "symbol"
	NodeChunk  NodeKind = "chunk"
)

// EdgeKind identifies the relationship an edge represents.
type EdgeKind string

const (
	EdgeDefines  EdgeKind = "defines"
	EdgeContains EdgeKind = "contains"
	EdgeCalls    EdgeKind = "calls"
	EdgeImports  EdgeKind = "imports"
)

// defaultEdgeWeights mirrors the ranker's bounded shortest-path weights
// (lower is "closer"). Kept alongside the kinds they weight rather than
// in internal/search, since both the graph's own shortest-path helper
// and the ranker's graph boost need the same table.
var defaultEdgeWeights = map[EdgeKind]float64{
	EdgeDefines:  1.25,
	EdgeContains: 0.6,
	EdgeCalls:    1.0,
	EdgeImports:  0.75,
}

// EdgeWeight returns the traversal weight for kind, falling back to the
// generic "other" weight (0.5) for anything unrecognized.
func EdgeWeight(kind EdgeKind) float64 {
	if w, ok := defaultEdgeWeights[kind]; ok {
		return w
	}
	return 0.5
}

// NodeID uniquely identifies a graph node. Files use their repo-relative
// path; symbols use chunk.ComputeSymbolID's file:name:start_line scheme;
// chunks use their content-addressed chunk id.
type NodeID string

// Node is one vertex of the code graph.
type Node struct {
	ID NodeID `json:"id"`
	// Kind is the node's type: file, symbol, or chunk.
	Kind NodeKind `json:"kind"`
	// Label is the human-readable name used for substring matching in
	// NodesMatchingLabel and ResolveNodeID (file path, symbol name, or
	// chunk id).
	Label string `json:"label"`
	// CanonicalID is an alternate lookup key also searched by
	// NodesMatchingLabel — for symbol nodes, their FQN.
	CanonicalID string `json:"canonical_id,omitempty"`
	// FilePath is the file the node belongs to (itself, for file nodes).
	FilePath string `json:"file_path"`
}

// Edge is one directed, typed connection between two nodes. The graph
// allows at most one edge per (Src, Dst, Kind) triple; multiple kinds
// between the same ordered pair are separate Edge values.
type Edge struct {
	Src  NodeID   `json:"src"`
	Dst  NodeID   `json:"dst"`
	Kind EdgeKind `json:"kind"`
}
