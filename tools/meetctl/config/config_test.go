package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"MEETCTL_SERVER", "MEETCTL_OUTPUT", "MEETCTL_TOKEN", "MEETCTL_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Empty(t, cfg.Token)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "meetctl", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
server = "https://meetings.example.test"
output = "yaml"
timeout = "30s"
`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://meetings.example.test", cfg.Server)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	t.Setenv("MEETCTL_OUTPUT", "json")
	t.Setenv("MEETCTL_TOKEN", "tok")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, "tok", cfg.Token)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`timeout = "soon"`), 0o600))

	_, err := LoadFrom(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`server = `), 0o600))
	_, err = LoadFrom(path)
	assert.Error(t, err)

	t.Setenv("MEETCTL_TIMEOUT", "forever")
	_, err = LoadFrom("")
	assert.Error(t, err)
}
