package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// search
// ============================================================================

func TestSearchCmd_JSON_LexicalWithoutProvider(t *testing.T) {
	// Given: a corpus and no embedding provider
	dir, _ := testEnv(t)

	// When: searching with JSON output
	out, err := execute(t, "--dir", dir, "--embedder", "none", "search", "justicia", "social", "--format", "json")

	// Then: the lexical ranking is returned with its fallback reason
	require.NoError(t, err)
	var res struct {
		Query    string `json:"query"`
		Mode     string `json:"mode"`
		Fallback string `json:"fallback"`
		Chunks   []struct {
			ID      int      `json:"id"`
			Matched []string `json:"matched_terms"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "justicia social", res.Query)
	assert.Equal(t, "lexical", res.Mode)
	assert.Equal(t, "no_provider", res.Fallback)
	require.NotEmpty(t, res.Chunks)
	assert.Contains(t, res.Chunks[0].Matched, "justicia")
}

func TestSearchCmd_ContextFormat(t *testing.T) {
	dir, _ := testEnv(t)

	out, err := execute(t, "--dir", dir, "--embedder", "static", "search", "industria nacional", "--format", "context")

	require.NoError(t, err)
	assert.Contains(t, out, "[carta · 1952-07-26 · Economía]")
}

func TestSearchCmd_TextFormat(t *testing.T) {
	dir, _ := testEnv(t)

	out, err := execute(t, "--dir", dir, "--embedder", "static", "search", "trabajadores", "-k", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "1 passages for \"trabajadores\"")
	assert.Contains(t, out, "matched:")
}

func TestSearchCmd_LexicalOnlyFlag(t *testing.T) {
	dir, _ := testEnv(t)

	out, err := execute(t, "--dir", dir, "--embedder", "static", "search", "trabajadores", "--lexical-only", "--format", "json")

	require.NoError(t, err)
	assert.Contains(t, out, `"fallback": "lexical_only"`)
}

func TestSearchCmd_NoMatch(t *testing.T) {
	dir, _ := testEnv(t)

	out, err := execute(t, "--dir", dir, "--embedder", "none", "search", "astronomía")

	require.NoError(t, err)
	assert.Contains(t, out, "No passages found")
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	dir, _ := testEnv(t)

	_, err := execute(t, "--dir", dir, "search", "trabajo", "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSearchCmd_RequiresMessage(t *testing.T) {
	_, err := execute(t, "search")

	assert.Error(t, err)
}
