package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/corpus"
)

func TestIngestCmd_WritesCorpus(t *testing.T) {
	// Given: a directory of speeches
	dir, _ := testEnv(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"),
		[]byte("Compañeros. La patria se construye con trabajo."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.md"),
		[]byte("El pueblo organizado es invencible."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip.pdf"), []byte("x"), 0o644))
	target := filepath.Join(dir, "out", "corpus.json")

	// When: ingesting with metadata flags
	out, err := execute(t, "--dir", dir, "ingest", src, "-o", target, "--kind", "discurso", "--date", "1949")

	// Then: one document per text file carries the metadata
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 documents (3 lines)")

	docs, err := corpus.Load(target, corpus.DefaultMetadata())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "discurso", docs[0].Kind)
	assert.Equal(t, "1949", docs[1].Date)
	assert.Equal(t, []string{"Compañeros.", "La patria se construye con trabajo."}, docs[0].Lines)
}

func TestIngestCmd_NotADirectory(t *testing.T) {
	dir, corpusPath := testEnv(t)

	_, err := execute(t, "--dir", dir, "ingest", corpusPath)

	assert.Error(t, err)
}
