package mcp

import (
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/telemetry"
)

// ToRelevantContextOutput converts an engine result to the tool output.
func ToRelevantContextOutput(res *search.Result) RelevantContextOutput {
	out := RelevantContextOutput{Mode: string(search.ModeEmpty), Chunks: []ChunkOutput{}}
	if res == nil {
		return out
	}
	out.Context = res.Context()
	out.Mode = string(res.Mode)
	out.Fallback = res.Fallback
	for _, sc := range res.Chunks {
		if sc.Chunk == nil {
			continue
		}
		out.Chunks = append(out.Chunks, ChunkOutput{
			ID:            sc.ID,
			Text:          sc.Chunk.Text,
			Author:        sc.Chunk.Author,
			Kind:          sc.Chunk.Kind,
			Date:          sc.Chunk.Date,
			Topic:         sc.Chunk.Topic,
			LexicalScore:  sc.Lexical,
			SemanticScore: sc.Semantic,
			MatchedTerms:  sc.Matched,
		})
	}
	return out
}

// toQueryStats summarizes a telemetry snapshot. A nil snapshot yields nil.
func toQueryStats(snap *telemetry.QueryMetricsSnapshot) *QueryStats {
	if snap == nil {
		return nil
	}
	return &QueryStats{
		Total:           snap.TotalQueries,
		ZeroResults:     snap.ZeroResultCount,
		SemanticRate:    snap.SemanticRate(),
		ModeCounts:      snap.ModeCounts,
		FallbackCounts:  snap.FallbackCounts,
		TopTerms:        snap.TopTerms,
		ExactRepeatRate: snap.ExactRepeatRate,
	}
}

func clampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	return max(lo, min(v, hi))
}
