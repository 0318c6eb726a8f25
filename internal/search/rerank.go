package search

import (
	"context"
	"math"
	"sort"
)

// Reranker orders shortlisted candidates against a query vector.
type Reranker interface {
	// Rerank returns at most topK candidates, best first.
	Rerank(ctx context.Context, query []float32, candidates []Candidate, topK int) []Candidate
}

// CosineSimilarity returns the cosine of the angle between a and b. It is 0
// for empty or mismatched vectors and when either norm is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MMRSelect picks up to topK candidates by maximal marginal relevance:
//
//	lambda*sim(c, q) - (1-lambda)*max sim(c, s) for s already selected
//
// The running maximum starts at 0. Ties keep the earlier candidate. It
// returns nil when query is empty or there are no candidates.
func MMRSelect(candidates []Candidate, query []float32, topK int, lambda float64) []Candidate {
	if len(query) == 0 || len(candidates) == 0 || topK <= 0 {
		return nil
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = CosineSimilarity(c.Embedding, query)
	}

	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}
	selected := make([]Candidate, 0, min(topK, len(candidates)))
	chosen := make([]int, 0, cap(selected))

	for len(selected) < topK && len(remaining) > 0 {
		bestPos := -1
		bestScore := math.Inf(-1)
		for pos, i := range remaining {
			maxSim := 0.0
			for _, j := range chosen {
				if s := CosineSimilarity(candidates[i].Embedding, candidates[j].Embedding); s > maxSim {
					maxSim = s
				}
			}
			score := lambda*relevance[i] - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		i := remaining[bestPos]
		chosen = append(chosen, i)
		selected = append(selected, candidates[i])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return selected
}

// RankBySemantic orders candidates by semantic score, then lexical score,
// keeping shortlist order for full ties, and returns the first topK.
func RankBySemantic(candidates []Candidate, topK int) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Semantic != ranked[j].Semantic {
			return ranked[i].Semantic > ranked[j].Semantic
		}
		return ranked[i].Lexical > ranked[j].Lexical
	})
	if topK < 0 {
		topK = 0
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// MMRReranker diversifies with MMRSelect and falls back to RankBySemantic
// when MMR yields nothing.
type MMRReranker struct {
	Lambda float64
}

var _ Reranker = MMRReranker{}

// NewMMRReranker returns an MMR reranker; lambda outside (0, 1] selects the
// default.
func NewMMRReranker(lambda float64) MMRReranker {
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultLambda
	}
	return MMRReranker{Lambda: lambda}
}

// Rerank implements Reranker.
func (r MMRReranker) Rerank(_ context.Context, query []float32, candidates []Candidate, topK int) []Candidate {
	if picked := MMRSelect(candidates, query, topK, r.Lambda); len(picked) > 0 {
		return picked
	}
	return RankBySemantic(candidates, topK)
}

// SemanticReranker ranks purely by semantic score.
type SemanticReranker struct{}

// Rerank implements Reranker.
func (SemanticReranker) Rerank(_ context.Context, _ []float32, candidates []Candidate, topK int) []Candidate {
	return RankBySemantic(candidates, topK)
}
