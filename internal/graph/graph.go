package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by ResolveNodeID when no node matches.
type ErrNotFound struct {
	Query string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("graph: no node matches %q", e.Query)
}

// ErrAmbiguous is returned by ResolveNodeID when more than one node
// matches and none can be preferred by the file>symbol>chunk priority
// rule.
type ErrAmbiguous struct {
	Query      string
	Candidates []NodeID
}

func (e *ErrAmbiguous) Error() string {
	return fmt.Sprintf("graph: query %q matches %d nodes ambiguously", e.Query, len(e.Candidates))
}

type edgeKey struct {
	src  NodeID
	dst  NodeID
	kind EdgeKind
}

// Graph is the in-memory code graph for a single branch index. All
// methods are safe for concurrent use; callers doing multi-step
// read-modify-write sequences (the pipeline's transaction commit) should
// still serialize through a single writer, since Graph only guarantees
// atomicity per call.
type Graph struct {
	mu sync.RWMutex

	nodes map[NodeID]*Node
	edges map[edgeKey]struct{}

	// out/in are adjacency lists keyed by node id, giving O(degree)
	// neighbor and edge queries instead of a linear scan of all edges.
	out map[NodeID][]Edge
	in  map[NodeID][]Edge

	// byFile and byKind are secondary indices mirroring the reference
	// implementation's file_path -> nodes and symbol_nodes lookups,
	// generalized to all three node kinds.
	byFile map[string][]NodeID
	byKind map[NodeKind][]NodeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[NodeID]*Node),
		edges:  make(map[edgeKey]struct{}),
		out:    make(map[NodeID][]Edge),
		in:     make(map[NodeID][]Edge),
		byFile: make(map[string][]NodeID),
		byKind: make(map[NodeKind][]NodeID),
	}
}

// AddNode inserts or replaces a node. Idempotent on ID.
func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID]; !exists {
		g.byFile[n.FilePath] = append(g.byFile[n.FilePath], n.ID)
		g.byKind[n.Kind] = append(g.byKind[n.Kind], n.ID)
	}
	cp := n
	g.nodes[n.ID] = &cp
}

// AddEdge inserts an edge. Idempotent on (src, dst, kind) — adding the
// same triple twice is a no-op, matching the reference implementation's
// existing-edge HashSet check.
func (g *Graph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeKey{e.Src, e.Dst, e.Kind}
	if _, exists := g.edges[key]; exists {
		return
	}
	g.edges[key] = struct{}{}
	g.out[e.Src] = append(g.out[e.Src], e)
	g.in[e.Dst] = append(g.in[e.Dst], e)
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeNodeLocked(id)
}

func (g *Graph) removeNodeLocked(id NodeID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.nodes, id)
	g.byFile[n.FilePath] = removeID(g.byFile[n.FilePath], id)
	g.byKind[n.Kind] = removeID(g.byKind[n.Kind], id)

	for _, e := range g.out[id] {
		delete(g.edges, edgeKey{e.Src, e.Dst, e.Kind})
		g.in[e.Dst] = removeEdge(g.in[e.Dst], e)
	}
	for _, e := range g.in[id] {
		delete(g.edges, edgeKey{e.Src, e.Dst, e.Kind})
		g.out[e.Src] = removeEdge(g.out[e.Src], e)
	}
	delete(g.out, id)
	delete(g.in, id)
}

// DeleteNodesForFile removes every node whose FilePath equals path,
// along with their edges. Used by the pipeline when a file is deleted
// or re-chunked from scratch.
func (g *Graph) DeleteNodesForFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := append([]NodeID{}, g.byFile[path]...)
	for _, id := range ids {
		g.removeNodeLocked(id)
	}
}

// GetNode returns the node with the given id, or false if absent.
func (g *Graph) GetNode(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetNeighbors returns the distinct nodes reachable by one outgoing edge
// from id, optionally filtered to the given edge kinds (all kinds if
// kinds is empty).
func (g *Graph) GetNeighbors(id NodeID, kinds ...EdgeKind) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[NodeID]struct{})
	var result []Node
	for _, e := range g.out[id] {
		if !kindMatches(e.Kind, kinds) {
			continue
		}
		if _, dup := seen[e.Dst]; dup {
			continue
		}
		if n, ok := g.nodes[e.Dst]; ok {
			seen[e.Dst] = struct{}{}
			result = append(result, *n)
		}
	}
	return result
}

// OutgoingEdges returns every edge with Src == id, optionally filtered
// by kind.
func (g *Graph) OutgoingEdges(id NodeID, kinds ...EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterEdges(g.out[id], kinds)
}

// IncomingEdges returns every edge with Dst == id, optionally filtered
// by kind.
func (g *Graph) IncomingEdges(id NodeID, kinds ...EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterEdges(g.in[id], kinds)
}

// NodesMatchingLabel returns nodes whose Label or CanonicalID contains
// query as a case-insensitive substring, optionally restricted to kind.
func (g *Graph) NodesMatchingLabel(query string, kind NodeKind) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	q := strings.ToLower(query)
	var ids []NodeID
	if kind != "" {
		ids = g.byKind[kind]
	} else {
		for _, list := range g.byKind {
			ids = append(ids, list...)
		}
	}

	var result []Node
	for _, id := range ids {
		n := g.nodes[id]
		if n == nil {
			continue
		}
		if strings.Contains(strings.ToLower(n.Label), q) || strings.Contains(strings.ToLower(n.CanonicalID), q) {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// nodeKindPriority gives the file>symbol>chunk tie-break order used by
// ResolveNodeID when a query matches nodes of more than one kind.
var nodeKindPriority = map[NodeKind]int{
	NodeFile:   0,
	NodeSymbol: 1,
	NodeChunk:  2,
}

// ResolveNodeID resolves a user- or ranker-supplied query to a single node
// id: an exact id hit wins outright regardless of kind. Otherwise,
// NodesMatchingLabel runs restricted to kind when kind is non-empty; with
// kind empty it runs across all kinds and, if multiple nodes match, the
// lowest-priority kind (file, then symbol, then chunk) wins the tie-break.
// Remaining ties (same kind, or kind was given and more than one node of
// that kind matches) are ambiguous.
func (g *Graph) ResolveNodeID(query string, kind NodeKind) (NodeID, error) {
	g.mu.RLock()
	if n, ok := g.nodes[NodeID(query)]; ok {
		g.mu.RUnlock()
		if kind == "" || n.Kind == kind {
			return n.ID, nil
		}
		return "", &ErrNotFound{Query: query}
	}
	g.mu.RUnlock()

	matches := g.NodesMatchingLabel(query, kind)
	if len(matches) == 0 {
		return "", &ErrNotFound{Query: query}
	}

	var candidates []Node
	if kind != "" {
		// Kind was pinned by the caller: no cross-kind tie-break to apply,
		// go straight to ambiguous if more than one node of that kind matches.
		candidates = matches
	} else {
		best := nodeKindPriority[matches[0].Kind]
		for _, m := range matches {
			p := nodeKindPriority[m.Kind]
			switch {
			case p < best:
				best = p
				candidates = []Node{m}
			case p == best:
				candidates = append(candidates, m)
			}
		}
	}

	if len(candidates) == 1 {
		return candidates[0].ID, nil
	}

	ids := make([]NodeID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return "", &ErrAmbiguous{Query: query, Candidates: ids}
}

// ShortestPath runs a breadth-first search from src to dst, bounded by
// maxDepth hops, and returns the path's edges in traversal order. Edge
// weights (see EdgeWeight) are used only by the ranker's graph boost to
// score a path once found; the path itself is the fewest-hops path,
// matching the reference implementation's BFS-based shortest_path
// (which also ignores weight when choosing the path, only using it to
// report distance).
func (g *Graph) ShortestPath(src, dst NodeID, maxDepth int) ([]Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if src == dst {
		return nil, true
	}
	if _, ok := g.nodes[src]; !ok {
		return nil, false
	}

	type frame struct {
		id   NodeID
		path []Edge
	}
	visited := map[NodeID]struct{}{src: {}}
	queue := []frame{{id: src}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) >= maxDepth {
			continue
		}
		for _, e := range g.out[cur.id] {
			if _, seen := visited[e.Dst]; seen {
				continue
			}
			nextPath := append(append([]Edge{}, cur.path...), e)
			if e.Dst == dst {
				return nextPath, true
			}
			visited[e.Dst] = struct{}{}
			queue = append(queue, frame{id: e.Dst, path: nextPath})
		}
	}
	return nil, false
}

// NodeCount returns the number of nodes currently in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges currently in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func kindMatches(k EdgeKind, allowed []EdgeKind) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

func filterEdges(edges []Edge, kinds []EdgeKind) []Edge {
	if len(kinds) == 0 {
		return append([]Edge{}, edges...)
	}
	var result []Edge
	for _, e := range edges {
		if kindMatches(e.Kind, kinds) {
			result = append(result, e)
		}
	}
	return result
}

func removeID(ids []NodeID, target NodeID) []NodeID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func removeEdge(edges []Edge, target Edge) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}
