package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCorpus = `[
  {
    "autor": "Juan Domingo Perón",
    "tipo": "discurso",
    "fecha": "1950-05-01",
    "tema": "Trabajo",
    "texto": [
      "Los trabajadores argentinos han conquistado derechos que ningún gobierno anterior quiso reconocer.",
      "La justicia social es la base de una nación que no admite privilegios para unos pocos."
    ]
  },
  {
    "autor": "Juan Domingo Perón",
    "tipo": "carta",
    "fecha": "1952-07-26",
    "tema": "Economía",
    "texto": "La independencia económica exige una industria nacional fuerte y un comercio exterior soberano al servicio del pueblo."
  }
]`

// testEnv isolates config, data and provider settings from the host and
// returns a project directory holding the test corpus.
func testEnv(t *testing.T) (dir, corpusPath string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("RAGCONTEXT_DATA_DIR", filepath.Join(home, ".ragcontext"))
	t.Setenv("RAGCONTEXT_EMBEDDER", "")
	t.Setenv("RAGCONTEXT_CORPUS", "")
	t.Setenv("OPENAI_API_KEY", "")

	dir = t.TempDir()
	corpusPath = filepath.Join(dir, "data", "peron_docs.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(corpusPath), 0o755))
	require.NoError(t, os.WriteFile(corpusPath, []byte(testCorpus), 0o644))
	return dir, corpusPath
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
