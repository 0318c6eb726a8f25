package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_MissingFile(t *testing.T) {
	backup, err := BackupFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	// Given an existing config
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\nembeddings:\n  provider: ollama\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When backing it up
	backup, err := BackupFile(path)

	// Then the backup holds the same bytes
	require.NoError(t, err)
	require.NotEmpty(t, backup)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestListBackups_NewestFirstAndPruned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	stamps := []string{"20240101-000000.000", "20240102-000000.000", "20240103-000000.000", "20240104-000000.000"}
	for _, s := range stamps {
		require.NoError(t, os.WriteFile(path+BackupSuffix+"."+s, []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml.bak.1"), []byte("x"), 0o644))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 4)
	assert.Equal(t, path+BackupSuffix+".20240104-000000.000", backups[0])

	require.NoError(t, pruneBackups(path))
	backups, err = ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
	assert.NoFileExists(t, path+BackupSuffix+".20240101-000000.000")
}
