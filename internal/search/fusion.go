package search

import (
	"sort"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/store"
)

// RRFFusion combines vector and lexical results using reciprocal rank
// fusion. Raw source scores are incomparable (cosine similarity vs BM25),
// so only rank positions contribute:
//
//	score(d) = Σ weight_s / (k + rank_s(d))
//
// over the sources that actually ranked d. A source that returned nothing,
// or did not rank d, contributes zero. With the default k=0 this is the
// plain weighted sum of reciprocal ranks.
type RRFFusion struct {
	// K is the smoothing constant. Zero means pure reciprocal rank;
	// higher values flatten the difference between adjacent ranks.
	K int
}

// NewRRFFusion creates a fusion instance with pure reciprocal ranks (k=0).
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: 0}
}

// NewRRFFusionWithK creates a fusion instance with a custom smoothing
// constant. Negative values are clamped to zero.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k < 0 {
		k = 0
	}
	return &RRFFusion{K: k}
}

// Fuse merges the two ranked lists and returns at most limit results.
//
// Ordering is deterministic: fused score (desc), then the better single-source
// rank, then arrival order (vector list first, lexical additions after).
// Empty inputs are fine; fusing two empty lists yields an empty slice.
func (f *RRFFusion) Fuse(
	vec []*store.VectorResult,
	lex []*store.LexicalResult,
	weights Weights,
	limit int,
) []*FusedResult {
	if len(vec) == 0 && len(lex) == 0 {
		return []*FusedResult{}
	}

	byID := make(map[string]*FusedResult, len(vec)+len(lex))
	order := make([]*FusedResult, 0, len(vec)+len(lex))

	getOrCreate := func(id string) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{ChunkID: id, insertion: len(order)}
		byID[id] = r
		order = append(order, r)
		return r
	}

	for rank, v := range vec {
		r := getOrCreate(v.ChunkID)
		r.VectorRank = rank + 1
		r.VectorScore = float64(v.Score)
		r.Score += weights.Vector / float64(f.K+rank+1)
	}

	for rank, l := range lex {
		r := getOrCreate(l.ChunkID)
		r.LexicalRank = rank + 1
		r.LexicalScore = l.Score
		r.MatchedTerms = l.MatchedTerms
		r.Score += weights.Lexical / float64(f.K+rank+1)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return f.less(order[i], order[j])
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

// less reports whether a ranks before b.
func (f *RRFFusion) less(a, b *FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if ar, br := a.bestRank(), b.bestRank(); ar != br {
		return ar < br
	}
	return a.insertion < b.insertion
}

// bestRank returns the lowest rank the chunk achieved in any source.
func (r *FusedResult) bestRank() int {
	best := r.VectorRank
	if best == 0 || (r.LexicalRank > 0 && r.LexicalRank < best) {
		best = r.LexicalRank
	}
	return best
}
