package search

import "sort"

// FusionWeights configures the relative importance of the four ranking
// signals: lexical (BM25), vector (semantic), graph proximity, and
// symbol-name match. Unlike Weights (BM25 vs Semantic only, consumed by
// RRFFusion), FusionWeights feeds NormalizedFusion.
type FusionWeights struct {
	Lexical float64
	Vector  float64
	Graph   float64
	Symbol  float64
}

// DefaultFusionWeights returns the default hybrid weighting: lexical and
// vector dominate, graph and symbol act as tie-breaking boosts.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Lexical: 0.35, Vector: 0.45, Graph: 0.13, Symbol: 0.07}
}

// applyGraphSymbolBoost folds graph-proximity and symbol-match scores
// into already-fused results: each raw score is normalized by its own
// maximum across the candidate set (so a component absent from the index,
// or irrelevant to this query, contributes nothing), then combined with
// the existing lexical+vector score under w. Results are re-sorted by the
// new combined Score.
//
// This keeps RRFFusion's lexical+vector blending untouched and adds the
// graph/symbol terms as a second normalization pass over the same
// candidate set, which is how a structural signal gets layered on top of
// a text ranker without re-deriving BM25/vector scores.
func applyGraphSymbolBoost(results []*SearchResult, graphScores, symScores map[string]float64, w FusionWeights) {
	if len(results) == 0 {
		return
	}

	var maxGraph, maxSym float64
	for _, r := range results {
		if s := graphScores[r.Chunk.ID]; s > maxGraph {
			maxGraph = s
		}
		if s := symScores[r.Chunk.ID]; s > maxSym {
			maxSym = s
		}
	}

	base := w.Lexical + w.Vector
	for _, r := range results {
		var gNorm, sNorm float64
		if maxGraph > 0 {
			gNorm = graphScores[r.Chunk.ID] / maxGraph
		}
		if maxSym > 0 {
			sNorm = symScores[r.Chunk.ID] / maxSym
		}
		r.GraphScore = gNorm
		r.SymbolScore = sNorm
		r.Score = base*r.Score + w.Graph*gNorm + w.Symbol*sNorm
	}

	sortResultsByScore(results)
}

// sortResultsByScore re-sorts results by Score descending, breaking ties
// by chunk ID for determinism.
func sortResultsByScore(results []*SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}
