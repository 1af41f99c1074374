package search

import (
	"math"
	"sort"
	"strings"

	"github.com/coderet/coderet/internal/graph"
)

// GraphBoostConfig controls the graph-proximity ranking term: how far a
// bounded shortest path may travel from a query-matched anchor node, and
// how fast each hop's contribution decays.
type GraphBoostConfig struct {
	MaxDepth int
	Decay    float64
}

// DefaultGraphBoostConfig returns the default bounded-traversal settings.
func DefaultGraphBoostConfig() GraphBoostConfig {
	return GraphBoostConfig{MaxDepth: 4, Decay: 0.75}
}

// GraphBooster scores candidate chunks by their code-graph proximity to
// nodes whose label matches the query, using the graph's bounded
// shortest-path search. It is the ranker-side counterpart of
// internal/graph's ResolveNodeID/ShortestPath: where those serve a single
// lookup, GraphBooster scores a whole candidate set at once.
type GraphBooster struct {
	g      *graph.Graph
	config GraphBoostConfig
}

// NewGraphBooster wraps g for use as a ranking signal. A nil g is
// accepted so callers can construct an Engine without graph data and
// have boosting silently become a no-op.
func NewGraphBooster(g *graph.Graph, config GraphBoostConfig) *GraphBooster {
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultGraphBoostConfig().MaxDepth
	}
	if config.Decay <= 0 {
		config.Decay = DefaultGraphBoostConfig().Decay
	}
	return &GraphBooster{g: g, config: config}
}

// Score returns a raw (unnormalized) graph-proximity score per chunk ID:
// the best bounded-shortest-path score from that chunk's graph node to
// any node whose label matches query. Chunks with no anchor within
// MaxDepth hops are omitted from the result, same as scoring 0.
func (gb *GraphBooster) Score(query string, chunkIDs []string) map[string]float64 {
	scores, _ := gb.ScorePaths(query, chunkIDs)
	return scores
}

// ScorePaths is Score plus evidence: for every scored chunk, the edge
// sequence of its best path to a query-matched anchor.
func (gb *GraphBooster) ScorePaths(query string, chunkIDs []string) (map[string]float64, map[string][]graph.Edge) {
	scores := make(map[string]float64)
	paths := make(map[string][]graph.Edge)
	if gb == nil || gb.g == nil || strings.TrimSpace(query) == "" {
		return scores, paths
	}
	anchors := gb.g.NodesMatchingLabel(query, "")
	if len(anchors) == 0 {
		return scores, paths
	}
	for _, id := range chunkIDs {
		src := graph.NodeID(id)
		if _, ok := gb.g.GetNode(src); !ok {
			continue
		}
		var best float64
		var bestPath []graph.Edge
		for _, a := range anchors {
			if a.ID == src {
				best, bestPath = 1, nil
				break
			}
			// Edges (defines/contains/calls/imports) point outward from
			// the referencing entity to what it references, so the
			// bounded search starts at the candidate chunk and looks
			// for a path to the query-matched anchor, not the reverse.
			edges, ok := gb.g.ShortestPath(src, a.ID, gb.config.MaxDepth)
			if !ok || len(edges) == 0 {
				continue
			}
			if s := gb.pathScore(edges); s > best {
				best, bestPath = s, edges
			}
		}
		if best > 0 {
			scores[id] = best
			if len(bestPath) > 0 {
				paths[id] = bestPath
			}
		}
	}
	return scores, paths
}

// Candidates returns the ids of chunk nodes reachable backward from any
// query-matched anchor within MaxDepth hops. These are structural hits:
// chunks that define, call, or import something matching the query even
// when the query text never appears in the chunk itself.
func (gb *GraphBooster) Candidates(query string) []string {
	if gb == nil || gb.g == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	anchors := gb.g.NodesMatchingLabel(query, "")
	if len(anchors) == 0 {
		return nil
	}

	found := make(map[string]struct{})
	for _, a := range anchors {
		visited := map[graph.NodeID]struct{}{a.ID: {}}
		frontier := []graph.NodeID{a.ID}
		for depth := 0; depth < gb.config.MaxDepth && len(frontier) > 0; depth++ {
			var next []graph.NodeID
			for _, id := range frontier {
				for _, e := range gb.g.IncomingEdges(id) {
					if _, dup := visited[e.Src]; dup {
						continue
					}
					visited[e.Src] = struct{}{}
					if n, ok := gb.g.GetNode(e.Src); ok && n.Kind == graph.NodeChunk {
						found[string(n.ID)] = struct{}{}
					}
					next = append(next, e.Src)
				}
			}
			frontier = next
		}
		if n, ok := gb.g.GetNode(a.ID); ok && n.Kind == graph.NodeChunk {
			found[string(a.ID)] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for id := range found {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// pathScore sums edge_weight * decay^hop across the path and divides by
// path length, so a short strongly-typed path outranks a long weak one.
func (gb *GraphBooster) pathScore(edges []graph.Edge) float64 {
	var sum float64
	for i, e := range edges {
		sum += graph.EdgeWeight(e.Kind) * math.Pow(gb.config.Decay, float64(i))
	}
	return sum / float64(len(edges))
}

// SymbolBoost scores chunks that define a symbol whose label matches
// the query, by traversing the graph's defines edges from each
// label-matching symbol node back to its defining chunk nodes: 1.0 when
// the symbol name equals the query or one of its terms
// (case-insensitive), 0.5 for a substring match. Chunks defining no
// matching symbol are omitted, same as scoring 0.
func (gb *GraphBooster) SymbolBoost(query string) map[string]float64 {
	scores := make(map[string]float64)
	if gb == nil || gb.g == nil {
		return scores
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return scores
	}
	terms := strings.Fields(q)

	for _, sym := range gb.g.NodesMatchingLabel(query, graph.NodeSymbol) {
		name := strings.ToLower(sym.Label)
		score := 0.5
		if name == q {
			score = 1.0
		} else {
			for _, t := range terms {
				if name == t {
					score = 1.0
					break
				}
			}
		}

		for _, e := range gb.g.IncomingEdges(sym.ID, graph.EdgeDefines) {
			src, ok := gb.g.GetNode(e.Src)
			if !ok || src.Kind != graph.NodeChunk {
				continue
			}
			if score > scores[string(src.ID)] {
				scores[string(src.ID)] = score
			}
		}
	}
	return scores
}
