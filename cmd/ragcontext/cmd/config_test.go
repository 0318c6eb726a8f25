package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/config"
)

// ============================================================================
// config
// ============================================================================

func TestConfigCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"])
	assert.True(t, names["show"])
	assert.True(t, names["path"])
}

func TestConfigShow_DefaultsJSON(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "config", "show", "--source", "defaults", "--format", "json")

	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 4, cfg.Search.TopK)
	assert.Equal(t, 40, cfg.Search.CandidateK)
	assert.InDelta(t, 0.75, cfg.Search.Lambda, 1e-9)
}

func TestConfigShow_MergedAppliesFlags(t *testing.T) {
	dir, _ := testEnv(t)

	out, err := execute(t, "--dir", dir, "--embedder", "static", "config", "show", "--format", "toml")

	require.NoError(t, err)
	assert.Contains(t, out, "provider = 'static'")
}

func TestConfigInit_ProjectThenForce(t *testing.T) {
	// Given: an empty project
	dir, _ := testEnv(t)
	path := filepath.Join(dir, ".ragcontext.yaml")

	// When: init runs twice without --force
	out, err := execute(t, "--dir", dir, "config", "init", "--project")
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")

	out, err = execute(t, "--dir", dir, "config", "init", "--project")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// Then: --force replaces it and keeps a backup
	_, err = execute(t, "--dir", dir, "config", "init", "--project", "--force")
	require.NoError(t, err)
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	// And: the written file loads
	_, err = os.Stat(path)
	require.NoError(t, err)
	_, err = config.Load(dir)
	assert.NoError(t, err)
}

func TestConfigInit_TOML(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "config", "init", "--format", "toml")

	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(config.GetUserConfigPath()), "config.toml"))
	assert.NoError(t, err)
}

func TestConfigPath(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, config.GetUserConfigPath())
	assert.Contains(t, out, "(none)")
}
