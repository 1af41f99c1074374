package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coderet/coderet/internal/graph"
)

// defaultEntryPointNames are the well-known symbol labels entry_points()
// looks for when the caller doesn't supply its own list.
var defaultEntryPointNames = []string{"main", "run", "serve", "start", "handler"}

// Direction selects which edges Neighbors follows from the starting node.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// RankConfig configures a ranked retrieval call: the fusion weights
// layered onto lexical+vector scoring, plus the same filters SearchOptions
// exposes for a plain hybrid search.
type RankConfig struct {
	Weights    FusionWeights
	Filter     string
	Language   string
	SymbolType string
	Scopes     []string
	BM25Only   bool
	Explain    bool
}

// ScoredChunk is one ranked retrieval hit: the stored chunk plus every
// component score that contributed to its final rank.
type ScoredChunk struct {
	Chunk       *SearchResult
	Score       float64
	BM25Score   float64
	VecScore    float64
	GraphScore  float64
	SymbolScore float64
	GraphPath   []graph.Edge
}

// Subgraph is a bounded neighborhood returned by Neighbors: the starting
// node's reachable nodes within max_hops, plus the edges connecting them.
type Subgraph struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// EntryPoint is one symbol-kind graph node whose label matches a
// well-known entry-point name (main, run, serve, ...).
type EntryPoint struct {
	ID       graph.NodeID
	Name     string
	FilePath string
}

// Retriever is the system's single external-facing query surface,
// wrapping the hybrid ranking Engine and the code Graph behind the five
// operations a CLI, TUI, or agent host actually needs: ranked search, a
// thin plain-search wrapper, node resolution, bounded neighbor expansion,
// and entry-point discovery.
type Retriever struct {
	engine *Engine
	graph  *graph.Graph
}

// NewRetriever builds a Retriever over an already-constructed engine and
// graph. graph may be nil for a lexical/vector-only deployment — Neighbors,
// ResolveNode, and EntryPoints then report graph.ErrNotFound-shaped empty
// results instead of panicking.
func NewRetriever(engine *Engine, g *graph.Graph) *Retriever {
	return &Retriever{engine: engine, graph: g}
}

// SearchRanked runs a hybrid search and returns every component score
// (lexical, vector, graph, symbol) alongside the final fused rank, per
// the cfg weights. The engine must already have been constructed with
// WithGraphBoost for the Graph/Symbol terms to be non-zero; cfg.Weights
// only controls how those already-computed signals are blended.
func (r *Retriever) SearchRanked(ctx context.Context, query string, limit int, cfg RankConfig) ([]ScoredChunk, error) {
	if r.engine == nil {
		return nil, fmt.Errorf("search: retriever has no engine configured")
	}

	prevWeights := r.engine.fusionW
	r.engine.mu.Lock()
	r.engine.fusionW = cfg.Weights
	r.engine.mu.Unlock()
	defer func() {
		r.engine.mu.Lock()
		r.engine.fusionW = prevWeights
		r.engine.mu.Unlock()
	}()

	results, err := r.engine.Search(ctx, query, SearchOptions{
		Limit:      limit,
		Filter:     cfg.Filter,
		Language:   cfg.Language,
		SymbolType: cfg.SymbolType,
		Scopes:     cfg.Scopes,
		BM25Only:   cfg.BM25Only,
		Explain:    cfg.Explain,
	})
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, len(results))
	for i, res := range results {
		scored[i] = ScoredChunk{
			Chunk:       res,
			Score:       res.Score,
			BM25Score:   res.BM25Score,
			VecScore:    res.VecScore,
			GraphScore:  res.GraphScore,
			SymbolScore: res.SymbolScore,
			GraphPath:   res.GraphPath,
		}
	}
	return scored, nil
}

// Search is the thin wrapper around SearchRanked: the same ranked search
// with the default fusion weights.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	return r.SearchRanked(ctx, query, limit, RankConfig{Weights: DefaultFusionWeights()})
}

// ResolveNode resolves query to a single graph node id, optionally
// restricted to kind. Returns graph.ErrNotFound or graph.ErrAmbiguous
// (via the returned error) exactly as internal/graph.ResolveNodeID does.
func (r *Retriever) ResolveNode(query string, kind graph.NodeKind) (graph.NodeID, error) {
	if r.graph == nil {
		return "", &graph.ErrNotFound{Query: query}
	}
	return r.graph.ResolveNodeID(query, kind)
}

// Neighbors expands node by up to maxHops edges in direction, optionally
// restricted to the given edge kinds, and returns the reachable nodes and
// the edges connecting them. maxHops <= 0 is treated as 1.
func (r *Retriever) Neighbors(node graph.NodeID, direction Direction, maxHops int, kinds ...graph.EdgeKind) (Subgraph, error) {
	if r.graph == nil {
		return Subgraph{}, &graph.ErrNotFound{Query: string(node)}
	}
	if _, ok := r.graph.GetNode(node); !ok {
		return Subgraph{}, &graph.ErrNotFound{Query: string(node)}
	}
	if maxHops <= 0 {
		maxHops = 1
	}

	seenNodes := map[graph.NodeID]struct{}{node: {}}
	seenEdges := map[graph.Edge]struct{}{}
	var nodes []graph.Node
	var edges []graph.Edge

	frontier := []graph.NodeID{node}
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []graph.NodeID
		for _, id := range frontier {
			for _, es := range edgeSets(r.graph, id, direction, kinds) {
				for _, e := range es {
					if _, dup := seenEdges[e]; !dup {
						seenEdges[e] = struct{}{}
						edges = append(edges, e)
					}
					other := e.Dst
					if other == id {
						other = e.Src
					}
					if _, dup := seenNodes[other]; dup {
						continue
					}
					seenNodes[other] = struct{}{}
					if n, ok := r.graph.GetNode(other); ok {
						nodes = append(nodes, n)
					}
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return Subgraph{Nodes: nodes, Edges: edges}, nil
}

// edgeSets returns the outgoing, incoming, or both edge slices for id per
// direction, each already filtered to kinds.
func edgeSets(g *graph.Graph, id graph.NodeID, direction Direction, kinds []graph.EdgeKind) [][]graph.Edge {
	switch direction {
	case DirectionIn:
		return [][]graph.Edge{g.IncomingEdges(id, kinds...)}
	case DirectionBoth:
		return [][]graph.Edge{g.OutgoingEdges(id, kinds...), g.IncomingEdges(id, kinds...)}
	default:
		return [][]graph.Edge{g.OutgoingEdges(id, kinds...)}
	}
}

// EntryPoints returns every symbol node whose label exactly matches one
// of names (case-insensitive), or defaultEntryPointNames when names is
// empty — the well-known functions ("main", "run", "serve", ...) a reader
// unfamiliar with the codebase would start exploring from.
func (r *Retriever) EntryPoints(names ...string) []EntryPoint {
	if r.graph == nil {
		return nil
	}
	if len(names) == 0 {
		names = defaultEntryPointNames
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = struct{}{}
	}

	var out []EntryPoint
	for _, n := range r.graph.NodesMatchingLabel("", graph.NodeSymbol) {
		if _, ok := want[strings.ToLower(n.Label)]; ok {
			out = append(out, EntryPoint{ID: n.ID, Name: n.Label, FilePath: n.FilePath})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
