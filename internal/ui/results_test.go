package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultRenderer_Render(t *testing.T) {
	// Given: two passages
	buf := &bytes.Buffer{}
	r := NewResultRenderer(buf, true)
	passages := []Passage{
		{Rank: 1, ID: 7, Kind: "discurso", Date: "1950-05-01", Topic: "Trabajo", Text: "El trabajo es un derecho.", Lexical: 2.5, Semantic: 0.81, Matched: []string{"trabajo"}},
		{Rank: 2, ID: 2, Kind: "carta", Date: "Desconocida", Topic: "General", Text: "Línea uno\nLínea dos", Lexical: 1.25},
	}

	// When: they are rendered
	r.Render(ResultSummary{Query: "trabajo", Mode: "semantic", Candidates: 12, Elapsed: "3ms"}, passages)

	// Then: each passage shows its header, scores and indented text
	out := buf.String()
	assert.Contains(t, out, `2 passages for "trabajo"  (semantic, 12 candidates, 3ms)`)
	assert.Contains(t, out, "1. [discurso · 1950-05-01 · Trabajo]  #7  bm25 2.500  cos 0.810")
	assert.Contains(t, out, "   matched: trabajo")
	assert.Contains(t, out, "2. [carta · Desconocida · General]  #2  bm25 1.250\n")
	assert.Contains(t, out, "   Línea uno\n   Línea dos")
}

func TestResultRenderer_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	NewResultRenderer(buf, true).Render(ResultSummary{Query: "xyz"}, nil)

	assert.Equal(t, "No passages found for \"xyz\"\n", buf.String())
}

func TestResultRenderer_ShowsFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	NewResultRenderer(buf, true).Render(
		ResultSummary{Query: "q", Mode: "lexical", Fallback: "no_provider", Candidates: 1, Elapsed: "1ms"},
		[]Passage{{Rank: 1, Kind: "k", Date: "d", Topic: "t", Text: "x"}},
	)

	assert.Contains(t, buf.String(), "(lexical, no_provider, 1 candidates, 1ms)")
}
