package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

func TestFormatChunk(t *testing.T) {
	tests := []struct {
		name string
		c    *chunk.Chunk
		want string
	}{
		{
			name: "all fields",
			c:    &chunk.Chunk{Text: "texto", Kind: "discurso", Date: "1950-05-01", Topic: "Trabajo"},
			want: "[discurso · 1950-05-01 · Trabajo] texto",
		},
		{
			name: "missing date",
			c:    &chunk.Chunk{Text: "texto", Kind: "carta", Topic: "Economía"},
			want: "[carta · Economía] texto",
		},
		{
			name: "no metadata",
			c:    &chunk.Chunk{Text: "texto"},
			want: "texto",
		},
		{
			name: "nil",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatChunk(tt.c))
		})
	}
}

func TestFormatContext_JoinsWithBlankLine(t *testing.T) {
	chunks := []ScoredChunk{
		{Chunk: &chunk.Chunk{Text: "uno", Kind: "discurso"}},
		{Chunk: &chunk.Chunk{Text: "dos"}},
	}
	assert.Equal(t, "[discurso] uno\n\ndos", FormatContext(chunks))
	assert.Equal(t, "", FormatContext(nil))

	var r *Result
	assert.Equal(t, "", r.Context())
}
