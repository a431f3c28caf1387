// Package search provides query classification and rank fusion for hybrid
// retrieval over vector and lexical sources.
package search

// Weights configures the relative importance of the vector and lexical
// sources during fusion. Equal weights are the default.
type Weights struct {
	// Vector is the weight for semantic similarity results.
	Vector float64

	// Lexical is the weight for keyword match results.
	Lexical float64
}

// DefaultWeights returns equal weighting for both sources.
func DefaultWeights() Weights {
	return Weights{Vector: 1.0, Lexical: 1.0}
}

// FusedResult represents a single result after reciprocal rank fusion.
type FusedResult struct {
	// ChunkID identifies the fused chunk.
	ChunkID string

	// Score is the combined reciprocal rank score.
	Score float64

	// VectorRank is the position in the vector list (1-indexed, 0 if absent).
	VectorRank int

	// LexicalRank is the position in the lexical list (1-indexed, 0 if absent).
	LexicalRank int

	// VectorScore preserves the source similarity score.
	VectorScore float64

	// LexicalScore preserves the source keyword score.
	LexicalScore float64

	// MatchedTerms contains the lexical query terms that matched.
	MatchedTerms []string

	// insertion preserves arrival order for deterministic tie-breaking.
	insertion int
}

// Sources returns the names of the lists this result appeared in.
func (r *FusedResult) Sources() []string {
	var s []string
	if r.VectorRank > 0 {
		s = append(s, "vector")
	}
	if r.LexicalRank > 0 {
		s = append(s, "lexical")
	}
	return s
}

// InBothLists reports whether the chunk was ranked by both sources.
func (r *FusedResult) InBothLists() bool {
	return r.VectorRank > 0 && r.LexicalRank > 0
}

// Decision is the routing outcome for a query.
// At least one of UseDocuments or UseWeb is always true.
type Decision struct {
	// UseDocuments routes the query to the document stores.
	UseDocuments bool

	// UseWeb routes the query to supplementary web search.
	UseWeb bool

	// MatchedTerms are the domain terms found in the query.
	MatchedTerms []string

	// RecencyCue is true when the query asks for fresh information.
	RecencyCue bool

	// Confidence estimates how strongly the query belongs to the corpus.
	Confidence float64
}
