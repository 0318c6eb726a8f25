package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmCmd_FillsCache(t *testing.T) {
	// Given: a corpus and the offline static provider
	dir, _ := testEnv(t)

	// When: warming with plain output
	out, err := execute(t, "--dir", dir, "--embedder", "static", "warm", "--plain", "--batch-size", "1")

	// Then: every chunk is embedded and the cache file is written
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 2 documents, 2 chunks, 2 embedded in 2 batches")
	assert.Contains(t, out, "Provider: static")
	_, err = os.Stat(filepath.Join(dir, "data", "peron_embeddings.json"))
	assert.NoError(t, err)

	// And: index reports full coverage
	out, err = execute(t, "--dir", dir, "--embedder", "static", "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached:   2/2 (100%)")
}

func TestWarmCmd_RequiresProvider(t *testing.T) {
	dir, _ := testEnv(t)

	_, err := execute(t, "--dir", dir, "--embedder", "none", "warm", "--plain")

	assert.Error(t, err)
}
