package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<SVGWorkbench>")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dir, "data", "schema", "svg.xsd"), cfg.Storage.SchemaFile)
	assert.Equal(t, ".svg,.svgz", cfg.Security.AllowedFileTypes)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	xmlText := `<?xml version="1.0"?>
<SVGWorkbench>
  <Server><Port>9000</Port></Server>
  <Processing><SessionTimeoutMinutes>10</SessionTimeoutMinutes></Processing>
  <Security><AllowFileDeletion>false</AllowFileDeletion></Security>
</SVGWorkbench>`
	require.NoError(t, os.WriteFile(path, []byte(xmlText), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.GetServerAddr())
	assert.Equal(t, 10*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 60*time.Minute, cfg.JobRetention())
	assert.False(t, cfg.Security.AllowFileDeletion)
	assert.Equal(t, filepath.Join(dir, "data", "catalog.duckdb"), cfg.Storage.CatalogDatabase)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("<SVGWorkbench><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PORT", "7070")
	t.Setenv("DATA_DIR", "/srv/svg")
	t.Setenv("SVG_SCHEMA_FILE", "/etc/svg/svg11.xsd")

	cfg, err := LoadConfig(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/srv/svg", cfg.GetDataDir())
	assert.Equal(t, filepath.Join("/srv/svg", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join("/srv/svg", "catalog.duckdb"), cfg.Storage.CatalogDatabase)
	assert.Equal(t, "/etc/svg/svg11.xsd", cfg.Storage.SchemaFile)

	t.Setenv("CATALOG_DB", "/var/lib/catalog.duckdb")
	cfg, err = LoadConfig(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/catalog.duckdb", cfg.Storage.CatalogDatabase)
}

func TestGzipLevel(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.GzipLevel())

	cfg.Processing.CompressionLevel = 42
	assert.Equal(t, 5, cfg.GzipLevel())

	cfg.Processing.EnableCompression = false
	assert.Equal(t, 0, cfg.GzipLevel())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{cfg.GetDataDir(), cfg.GetUploadDir(), cfg.Storage.TempDirectory} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
