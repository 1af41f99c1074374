package graph

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// snapshot is the gob-serializable form of a Graph: nodes and edges as
// flat slices, since the adjacency maps and secondary indices are all
// derivable from them and gob doesn't need to carry derived state.
type snapshot struct {
	Nodes []Node
	Edges []Edge
}

// Save writes the graph to path (graph.bin in the branch's index
// directory) atomically: it writes to a temp file in the same directory
// and renames over the destination, matching the vector index's save
// pattern so a crash mid-write never leaves a truncated graph.bin.
func Save(g *Graph, path string) error {
	g.mu.RLock()
	snap := snapshot{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]Edge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for key := range g.edges {
		snap.Edges = append(snap.Edges, Edge{Src: key.src, Dst: key.dst, Kind: key.kind})
	}
	g.mu.RUnlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return fmt.Errorf("graph: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("graph: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("graph: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("graph: rename into place: %w", err)
	}
	return nil
}

// Load reads a graph previously written by Save. A missing file yields
// an empty graph rather than an error, since a branch's first index run
// has no prior graph.bin.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph: open: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("graph: decode: %w", err)
	}

	g := New()
	for _, n := range snap.Nodes {
		g.AddNode(n)
	}
	for _, e := range snap.Edges {
		g.AddEdge(e)
	}
	return g, nil
}
