package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Frame())
	assert.Equal(t, time.Second, cfg.BridgeStopTimeout())
	assert.Equal(t, 16, cfg.MaxPipeDepth)
	assert.Equal(t, 23, cfg.SidebarWidth)
	assert.Equal(t, filepath.Join(PolyDir(), "plugins"), cfg.PluginDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileExpandsEnvAndKeepsValues(t *testing.T) {
	t.Setenv("POLY_TEST_DIR", "/srv/poly")
	path := filepath.Join(t.TempDir(), "poly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugin_dir: ${POLY_TEST_DIR}/plugins
max_pipe_depth: 4
plugin_repo: https://plugins.example.com/poly/
colors:
  header: "#ff0000"
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/poly/plugins", cfg.PluginDir)
	assert.Equal(t, 4, cfg.MaxPipeDepth)
	assert.Equal(t, "https://plugins.example.com/poly/", cfg.PluginRepo)
	assert.Equal(t, "#ff0000", cfg.Colors["header"])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poly.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame_ms: 20\n"), 0o644))
	t.Setenv("POLY_FRAME_MS", "75")
	t.Setenv("POLY_EXPORT_DIR", "/tmp/exports")
	t.Setenv("POLY_LOG_DEVELOPMENT", "true")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.FrameMS)
	assert.Equal(t, "/tmp/exports", cfg.ExportDir)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poly.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame_ms: [1,"), 0o644))
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "poly.yaml")
	want := Default()
	want.SidebarWidth = 30
	require.NoError(t, want.Write(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30, got.SidebarWidth)
}
